package curriculum

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/curriculum.json
var curriculumSchemaJSON string

//go:embed schema/questions.json
var questionsSchemaJSON string

type schemaValidator = *gojsonschema.Schema

var (
	curriculumSchema = mustSchema(curriculumSchemaJSON)
	questionsSchema  = mustSchema(questionsSchemaJSON)
)

func mustSchema(doc string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

// validateDocument checks a JSON document against a compiled schema and
// folds every violation into a single error.
func validateDocument(s schemaValidator, doc string) error {
	result, err := s.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("parse generated JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New("generated JSON does not match schema: " + strings.Join(msgs, "; "))
}

// extractJSON strips markdown fences and prose around the outermost JSON object.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", errors.New("no JSON object in response")
	}
	return s[start : end+1], nil
}
