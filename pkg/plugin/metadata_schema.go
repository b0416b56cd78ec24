package plugin

// PackageSchema is the JSON Schema a plugin's package.json must satisfy
// before its metadata is trusted. Every field is optional.
const PackageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name": {
      "type": "string",
      "description": "Package name"
    },
    "version": {
      "type": "string",
      "description": "Semantic version"
    },
    "description": {
      "type": "string"
    },
    "homepage": {
      "type": "string"
    },
    "author": {
      "description": "npm person, either a string or an object",
      "oneOf": [
        {"type": "string"},
        {
          "type": "object",
          "properties": {
            "name": {"type": "string"},
            "email": {"type": "string"},
            "url": {"type": "string"}
          }
        }
      ]
    },
    "main": {
      "type": "string",
      "minLength": 1,
      "description": "Entry point executable for process plugins"
    }
  }
}`
