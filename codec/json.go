package codec

import "encoding/json"

// JSON is the standard-library JSON codec. It is the most portable option;
// use it when decoding manifests with external tooling matters more than
// encoding speed.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for newly written manifests. Existing manifests
// are self-describing and are opened by selecting their recorded codec via
// ByName.
var Default Codec = GoJSON{}
