package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
)

// DecodeResponse decodes a response body according to the declared response
// type: json, text (or string), anything else as form data. Failures come
// back unified under the decode phase.
func DecodeResponse(responseType ResponseType, resp TransportResponse) (any, error) {
	var (
		value any
		err   error
	)
	switch ResponseType(strings.ToLower(strings.TrimSpace(string(responseType)))) {
	case ResponseTypeJSON:
		value, err = decodeJSON(resp.Body)
	case ResponseTypeText, ResponseTypeString:
		value = string(resp.Body)
	default:
		value, err = decodeFormData(resp.ContentType(), resp.Body)
	}
	if err != nil {
		return nil, Unify(LayerServiceDriver, PhaseDecode, err)
	}
	return value, nil
}

func decodeJSON(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("core: decode json response: %w", err)
	}
	if object, ok := decoded.(map[string]any); ok {
		return Bucket(object), nil
	}
	return decoded, nil
}

func decodeFormData(contentType string, body []byte) (Bucket, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("core: parse form data content type: %w", err)
	}
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("core: decode urlencoded form: %w", err)
		}
		out := Bucket{}
		for key, list := range values {
			out[key] = collapse(list)
		}
		return out, nil
	}
	boundary := params["boundary"]
	if !strings.HasPrefix(mediaType, "multipart/") || boundary == "" {
		return nil, fmt.Errorf("core: response is not multipart form data: %q", contentType)
	}

	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	fields := map[string][]string{}
	files := map[string][][]byte{}
	order := make([]string, 0)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("core: read form data part: %w", err)
		}
		name := part.FormName()
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, fmt.Errorf("core: read form data part %q: %w", name, err)
		}
		if name == "" {
			continue
		}
		if _, seen := fields[name]; !seen {
			if _, seenFile := files[name]; !seenFile {
				order = append(order, name)
			}
		}
		if part.FileName() != "" {
			files[name] = append(files[name], data)
			continue
		}
		fields[name] = append(fields[name], string(data))
	}

	out := Bucket{}
	for _, name := range order {
		if list, ok := files[name]; ok {
			if len(list) == 1 {
				out[name] = list[0]
			} else {
				out[name] = list
			}
			continue
		}
		out[name] = collapse(fields[name])
	}
	return out, nil
}

func collapse(values []string) any {
	if len(values) == 1 {
		return values[0]
	}
	return append([]string(nil), values...)
}
