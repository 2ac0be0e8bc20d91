package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
)

// maxUploadBytes caps multipart bodies: photos and voice notes from phones,
// not videos.
const maxUploadBytes = 32 << 20 // 32 MB

// requestBody is the decoded request payload, normalized across the shapes
// clients actually send: a JSON object, a urlencoded form, or a multipart
// form with file parts.
//
// fields holds the scalar values. After JSON decoding they are string,
// json.Number, bool, or nested maps; after form parsing everything is a
// string. The accessors below (and geo.ExtractCoords) cope with both, so
// handlers never care which shape arrived.
type requestBody struct {
	fields map[string]any
	files  map[string]*multipart.FileHeader
}

// parseRequestBody decodes the body according to its content type.
// An empty body is a valid (empty) payload, not an error.
func parseRequestBody(r *http.Request) (*requestBody, error) {
	body := &requestBody{
		fields: map[string]any{},
		files:  map[string]*multipart.FileHeader{},
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, errors.New("invalid multipart body")
		}
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				body.fields[key] = values[0]
			}
		}
		for key, headers := range r.MultipartForm.File {
			if len(headers) > 0 {
				body.files[key] = headers[0]
			}
		}

	case mediaType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("invalid form body")
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				body.fields[key] = values[0]
			}
		}

	default:
		// JSON, declared or not. UseNumber keeps numerics as json.Number so
		// large values and integer/float distinctions survive.
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body.fields); err != nil {
			if errors.Is(err, io.EOF) {
				return body, nil // empty body, empty payload
			}
			return nil, errors.New("invalid JSON body")
		}
	}

	return body, nil
}

// str returns the field as a string. json.Number and bool values stringify;
// anything else (objects, arrays, null) reports absent.
func (b *requestBody) str(key string) (string, bool) {
	v, ok := b.fields[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// intVal returns the field as an int, accepting numbers or numeric strings.
func (b *requestBody) intVal(key string) (int, bool) {
	v, ok := b.fields[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case json.Number:
		n, err := strconv.Atoi(val.String())
		return n, err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		return n, err == nil
	case float64:
		return int(val), true
	default:
		return 0, false
	}
}

// strPtr is str with pointer semantics: nil means "field absent", which is
// what partial updates need to distinguish from "field set to empty".
func (b *requestBody) strPtr(key string) *string {
	if s, ok := b.str(key); ok {
		return &s
	}
	return nil
}

// intPtr is intVal with pointer semantics.
func (b *requestBody) intPtr(key string) *int {
	if n, ok := b.intVal(key); ok {
		return &n
	}
	return nil
}

// file returns the named upload, or nil.
func (b *requestBody) file(key string) *multipart.FileHeader {
	return b.files[key]
}

// firstStr returns the first present key's string value — for request shapes
// where clients have used different names for the same thing.
func (b *requestBody) firstStr(keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := b.str(key); ok {
			return s, true
		}
	}
	return "", false
}
