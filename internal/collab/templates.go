package collab

import (
	"fmt"
	"strings"

	"collab-go/internal/model"
)

const defaultCodeLanguage = "javascript"

// initialContent returns the seed content type, data and metadata for the
// first content object of a space.
func initialContent(kind model.SpaceKind, title string, settings model.Meta) (string, string, model.Meta) {
	switch kind {
	case model.KindWhiteboard:
		return "application/vnd.collab.whiteboard+json",
			`{"objects":[],"canvas":{"width":1920,"height":1080,"background":"#ffffff","zoom":1}}`,
			model.Meta{"format": "json"}
	case model.KindCode:
		language := defaultCodeLanguage
		if v, ok := settings["language"].(string); ok && v != "" {
			language = v
		}
		return "text/x-code",
			fmt.Sprintf("%s %s\n", commentPrefix(language), title),
			model.Meta{"language": language}
	case model.KindVideo:
		return "application/vnd.collab.video+json",
			`{"tracks":[],"clips":[],"duration":0,"resolution":"1920x1080","fps":30}`,
			model.Meta{"format": "json"}
	default:
		return "text/markdown",
			fmt.Sprintf("# %s\n\nStart writing here.\n", title),
			model.Meta{"format": "markdown"}
	}
}

func commentPrefix(language string) string {
	switch strings.ToLower(language) {
	case "python", "ruby", "shell", "bash", "yaml", "toml":
		return "#"
	case "sql", "lua", "haskell":
		return "--"
	default:
		return "//"
	}
}

// isText reports whether a content type accepts text operations. Other
// content types are opaque blobs replaced as a whole.
func isText(contentType string) bool {
	return strings.HasPrefix(contentType, "text/")
}
