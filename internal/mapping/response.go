package mapping

import (
	"fmt"
	"strconv"

	"github.com/mark3labs/swaggerclient/internal/spec"
)

// Response is the normalized view of an HTTP response every transport adapter
// must provide. The core never looks at concrete transport types.
type Response interface {
	StatusCode() int
	// JSON returns the decoded body; an empty body decodes to nil.
	JSON() (any, error)
	Header(name string) string
}

// HandleResponse maps a transport response back to (status code, value)
// using op's response specs. raw must implement Response.
func HandleResponse(raw any, op *Operation) (int, any, error) {
	resp, ok := raw.(Response)
	if !ok {
		return 0, nil, &UnsupportedResponseError{Type: fmt.Sprintf("%T", raw)}
	}
	responseSpec, err := GetResponseSpec(resp.StatusCode(), op)
	if err != nil {
		return resp.StatusCode(), nil, err
	}
	return UnmarshalResponse(op.Spec, responseSpec, resp)
}

// GetResponseSpec returns the response spec declared for statusCode, falling
// back to `default`.
func GetResponseSpec(statusCode int, op *Operation) (spec.Node, error) {
	responses := spec.Map(op.OpSpec["responses"])
	if rs, ok := responses[strconv.Itoa(statusCode)]; ok {
		return rs, nil
	}
	if rs, ok := responses["default"]; ok {
		return rs, nil
	}
	return nil, &ResponseMappingError{OperationID: op.OperationID(), StatusCode: statusCode}
}

// UnmarshalResponse decodes resp against responseSpec. Without a declared
// schema the value is nil and only the status code is meaningful.
func UnmarshalResponse(s *spec.Spec, responseSpec spec.Node, resp Response) (int, any, error) {
	schema, ok := spec.Map(responseSpec)["schema"]
	if !ok {
		return resp.StatusCode(), nil, nil
	}
	raw, err := resp.JSON()
	if err != nil {
		return resp.StatusCode(), nil, &SchemaError{Op: "unmarshal", Message: "response body is not valid JSON", Cause: err}
	}
	value, err := UnmarshalSchemaObject(s, schema, raw)
	if err != nil {
		return resp.StatusCode(), nil, err
	}
	return resp.StatusCode(), value, nil
}
