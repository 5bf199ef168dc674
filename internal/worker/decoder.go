package worker

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
	"golang.org/x/text/encoding/charmap"
)

// DecodeJob turns a raw message body into a Job.
//
// The body is parsed as JSON first. Only when it is not valid JSON at all is it
// treated as base64, with the decoded bytes read as ISO-8859-1 text before a
// second JSON parse.
//
// Well-formed JSON of the wrong shape is an invalid job (wraps
// domain.ErrInvalidJob). A body that fails both routes is a *domain.DecodeError.
func DecodeJob(body []byte) (*domain.Job, error) {
	var job domain.Job
	err := json.Unmarshal(body, &job)
	if err == nil {
		return &job, nil
	}

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return nil, invalidJob(err)
	}

	raw, err := decodeBase64(bytes.TrimSpace(body))
	if err != nil {
		return nil, domain.NewDecodeError(domain.DecodeStageBase64, err)
	}

	text, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, domain.NewDecodeError(domain.DecodeStageBase64, err)
	}

	job = domain.Job{}
	if err := json.Unmarshal(text, &job); err != nil {
		if !errors.As(err, &syntaxErr) {
			return nil, invalidJob(err)
		}
		return nil, domain.NewDecodeError(domain.DecodeStageBase64JSON, err)
	}

	return &job, nil
}

func invalidJob(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidJob, err)
}

// decodeBase64 accepts padded and unpadded standard encodings
func decodeBase64(data []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err == nil {
		return out[:n], nil
	}

	n, rawErr := base64.RawStdEncoding.Decode(out, data)
	if rawErr != nil {
		return nil, err
	}
	return out[:n], nil
}
