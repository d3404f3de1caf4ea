package storage

import (
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

// cleanKey normalizes an object key and rejects keys escaping the storage root
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", goerr.Wrap(model.ErrValidation, "empty storage key")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", goerr.Wrap(model.ErrValidation, "invalid storage key", goerr.V("key", key))
	}
	return cleaned, nil
}
