package analysis

import (
	"encoding/json"
	"sync"

	"github.com/fakesociety/RentGuard360/model"
	"github.com/invopop/jsonschema"
)

var outputSchema = sync.OnceValue(func() json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	data, err := json.Marshal(r.Reflect(&model.AnalysisResult{}))
	if err != nil {
		// Reflecting a fixed struct cannot fail at runtime.
		panic(err)
	}
	return data
})

// OutputSchema is the JSON schema the reasoner's report must follow.
func OutputSchema() json.RawMessage {
	return outputSchema()
}
