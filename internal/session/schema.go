package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tgienger/taskflow/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

const userSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["_id", "username", "email"],
  "properties": {
    "_id": { "type": "string", "minLength": 1 },
    "username": { "type": "string", "minLength": 1 },
    "email": { "type": "string" },
    "profileImage": { "type": "string" },
    "bio": { "type": "string" }
  }
}`

var userSchemaLoader = gojsonschema.NewStringLoader(userSchema)

// parseUser validates a persisted user record before decoding it
func parseUser(raw string) (models.User, error) {
	result, err := gojsonschema.Validate(userSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return models.User{}, fmt.Errorf("stored user is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var sb strings.Builder
		for _, e := range result.Errors() {
			sb.WriteString(e.String())
			sb.WriteString("; ")
		}
		return models.User{}, fmt.Errorf("stored user does not match schema: %s", sb.String())
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return models.User{}, fmt.Errorf("decode stored user: %w", err)
	}
	return user, nil
}
