package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

const (
	headerContentType = "Content-Type"
	headerCookie      = "Cookie"
)

// RequestDefaults seeds the request before call arguments are applied.
type RequestDefaults struct {
	ContentType string
	Mode        string
	Credentials string
	Headers     map[string]string
}

// AssembledRequest is the outcome of parameter assembly. Query is a side
// channel: the caller encodes it onto the address and drops it.
type AssembledRequest struct {
	Options FetchOptions
	Query   Bucket
	// BodyErr is set when a body argument could not be JSON encoded and was
	// left out of the request.
	BodyErr error
}

type buckets struct {
	body    any
	bodyErr error
	headers Bucket
	query   Bucket
	cookies Bucket
}

// AssembleParameters maps positional call arguments onto the body, header,
// query and cookie buckets described by schema. Nil arguments, arguments past
// the schema and unknown positions are skipped.
func AssembleParameters(method string, schema []ParameterDef, args []any, defaults RequestDefaults) AssembledRequest {
	b := buckets{}
	for i, arg := range args {
		if i >= len(schema) {
			break
		}
		if isNil(arg) {
			continue
		}
		def := schema[i]
		name := strings.TrimSpace(def.Name)
		switch def.Position {
		case PositionBody:
			b.assignBody(name, arg)
		case PositionHeader:
			b.headers = assignBucket(b.headers, name, arg)
		case PositionQuery:
			b.query = assignBucket(b.query, name, arg)
		case PositionCookie:
			b.cookies = assignBucket(b.cookies, name, arg)
		}
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = DefaultMethod
	}

	headers := make(map[string]string, len(defaults.Headers)+len(b.headers)+2)
	for key, value := range defaults.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		headers[key] = value
	}
	for key, value := range b.headers {
		headers[key] = stringify(value)
	}
	if _, ok := lookupHeader(headers, headerContentType); !ok {
		contentType := strings.TrimSpace(defaults.ContentType)
		if contentType == "" {
			contentType = DefaultContentType
		}
		headers[headerContentType] = contentType
	}
	if len(b.cookies) > 0 {
		key, existing := lookupHeaderKey(headers, headerCookie)
		headers[key] = existing + serializeCookies(b.cookies)
	}

	opts := FetchOptions{
		Method:      method,
		Headers:     headers,
		Mode:        firstNonEmpty(defaults.Mode, DefaultMode),
		Credentials: firstNonEmpty(defaults.Credentials, DefaultCredentials),
	}
	if b.body != nil {
		if encoded, err := json.Marshal(b.body); err == nil {
			opts.Body = string(encoded)
		} else {
			b.bodyErr = fmt.Errorf("core: encode request body: %w", err)
		}
	}
	if len(b.query) > 0 {
		opts.Query = b.query
	}
	return AssembledRequest{Options: opts, Query: b.query, BodyErr: b.bodyErr}
}

func (b *buckets) assignBody(name string, arg any) {
	if name == "" {
		if normalized, ok := normalizeStructured(arg); ok {
			b.body = normalized
		}
		return
	}
	if _, err := json.Marshal(arg); err != nil {
		b.bodyErr = fmt.Errorf("core: encode body parameter %q: %w", name, err)
		return
	}
	body, ok := b.body.(Bucket)
	if !ok {
		body = Bucket{}
	}
	body[name] = arg
	b.body = body
}

// assignBucket replaces the bucket with an unnamed structured argument or
// sets a named field, creating the bucket on first write.
func assignBucket(bucket Bucket, name string, arg any) Bucket {
	if name == "" {
		normalized, ok := normalizeStructured(arg)
		if !ok {
			return bucket
		}
		replaced, ok := normalized.(Bucket)
		if !ok {
			return bucket
		}
		return replaced
	}
	if bucket == nil {
		bucket = Bucket{}
	}
	bucket[name] = arg
	return bucket
}

// normalizeStructured converts maps, structs and slices into their generic
// JSON form. Objects become Bucket.
func normalizeStructured(arg any) (any, bool) {
	switch typed := arg.(type) {
	case Bucket:
		return typed.Clone(), true
	case map[string]any:
		return Bucket(typed).Clone(), true
	}
	value := reflect.ValueOf(arg)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil, false
		}
		value = value.Elem()
	}
	switch value.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
	default:
		return nil, false
	}
	encoded, err := json.Marshal(arg)
	if err != nil {
		return nil, false
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, false
	}
	if object, ok := decoded.(map[string]any); ok {
		return Bucket(object), true
	}
	if decoded == nil {
		return nil, false
	}
	return decoded, true
}

func serializeCookies(cookies Bucket) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	var out strings.Builder
	for _, name := range names {
		out.WriteString(name)
		out.WriteString("=")
		out.WriteString(stringify(cookies[name]))
		out.WriteString(" ")
	}
	return out.String()
}

// EncodeQuery renders a query bucket as key=value&... in key order.
func EncodeQuery(query Bucket) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(stringify(query[key])))
	}
	return strings.Join(parts, "&")
}

// AppendQuery appends an encoded query string to address.
func AppendQuery(address string, query Bucket) string {
	encoded := EncodeQuery(query)
	if encoded == "" {
		return address
	}
	separator := "?"
	if strings.Contains(address, "?") {
		separator = "&"
	}
	return address + separator + encoded
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return "", false
}

func lookupHeaderKey(headers map[string]string, name string) (string, string) {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return key, value
		}
	}
	return name, ""
}

func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case fmt.Stringer:
		return typed.String()
	case Bucket, map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	default:
		return fmt.Sprint(typed)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
