package daemon

// Request is one inbound RPC frame: a single line of JSON.
type Request struct {
	ID     string                 `json:"id"`
	V      int                    `json:"v"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

// Response is one outbound RPC frame, written as a single line.
type Response struct {
	ID     string      `json:"id,omitempty"`
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Methods the daemon answers itself, without touching the service.
const (
	methodStop    = "stop"
	methodMethods = "methods"
)
