package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/contract-cli/internal/model"
)

// Kind tags the outcome of a structured completion.
type Kind string

const (
	// KindOK means Payload conforms to the request schema.
	KindOK Kind = "ok"
	// KindSchemaError means the service answered but the text was not
	// JSON or did not conform to the schema.
	KindSchemaError Kind = "schema_error"
	// KindServiceError means the call itself failed or timed out.
	KindServiceError Kind = "service_error"
)

// Result is the tagged outcome of Structured. Payload is set only for KindOK.
type Result struct {
	Kind    Kind
	Payload json.RawMessage
	Raw     string
	Err     error
	Usage   model.TokenUsage
}

// OK reports whether the payload can be trusted.
func (r Result) OK() bool { return r.Kind == KindOK }

// Structured calls c and validates the returned JSON against req.Schema.
// It never returns an error; failures are reported through Result.Kind.
func Structured(ctx context.Context, c Completer, req Request) Result {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return Result{Kind: KindServiceError, Err: err}
	}
	if resp == nil {
		return Result{Kind: KindServiceError, Err: eris.Errorf("completion: %s: empty response", req.Name)}
	}

	res := Result{Raw: resp.Text, Usage: resp.Usage}
	payload := CleanJSON(resp.Text)
	if err := Validate(req.Schema, []byte(payload)); err != nil {
		res.Kind = KindSchemaError
		res.Err = eris.Wrapf(err, "completion: %s", req.Name)
		return res
	}
	res.Kind = KindOK
	res.Payload = json.RawMessage(payload)
	return res
}

// CleanJSON extracts a JSON object from text that may be wrapped in
// markdown fences or surrounded by prose.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

var schemaCache sync.Map // schema JSON -> *jsonschema.Schema

// Validate checks data against schema. A nil schema only requires valid JSON.
func Validate(schema map[string]any, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrap(err, "invalid json")
	}
	if len(schema) == 0 {
		return nil
	}
	compiled, err := compile(schema)
	if err != nil {
		return err
	}
	if err := compiled.Validate(v); err != nil {
		return eris.Wrap(err, "json does not match schema")
	}
	return nil
}

func compile(schema map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, eris.Wrap(err, "marshal schema")
	}
	key := string(b)
	if s, ok := schemaCache.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, eris.Wrap(err, "add schema")
	}
	s, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, eris.Wrap(err, "compile schema")
	}
	schemaCache.Store(key, s)
	return s, nil
}
