package pipeline

import (
	"fmt"

	"github.com/feichai0017/docflow/internal/events"
)

// StageSpec declares one pipeline stage and its topic bindings. The
// graph is an explicit table rather than strings scattered through the
// stages, and is validated at startup so a typo fails fast instead of
// stranding messages on an unconsumed topic.
type StageSpec struct {
	Name     string
	InTopic  string
	OutTopic string
}

// Graph returns the fixed stage graph in pipeline order.
func Graph() []StageSpec {
	return []StageSpec{
		{Name: "ingestor", InTopic: events.TopicInitialize, OutTopic: events.TopicReceived},
		{Name: "extractor", InTopic: events.TopicReceived, OutTopic: events.TopicText},
		{Name: "classifier", InTopic: events.TopicText, OutTopic: events.TopicType},
		{Name: "router", InTopic: events.TopicType, OutTopic: events.TopicRouted},
	}
}

// ValidateGraph checks that specs form a single connected chain over
// declared routing keys.
func ValidateGraph(specs []StageSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("pipeline graph is empty")
	}

	names := make(map[string]bool, len(specs))
	inputs := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if names[spec.Name] {
			return fmt.Errorf("duplicate stage name %q", spec.Name)
		}
		names[spec.Name] = true

		if !events.Known(spec.InTopic) {
			return fmt.Errorf("stage %q consumes unknown topic %q", spec.Name, spec.InTopic)
		}
		if !events.Known(spec.OutTopic) {
			return fmt.Errorf("stage %q produces unknown topic %q", spec.Name, spec.OutTopic)
		}
		if spec.InTopic == spec.OutTopic {
			return fmt.Errorf("stage %q consumes its own output topic %q", spec.Name, spec.InTopic)
		}
		if inputs[spec.InTopic] {
			return fmt.Errorf("topic %q consumed by more than one stage", spec.InTopic)
		}
		inputs[spec.InTopic] = true

		if i > 0 && specs[i-1].OutTopic != spec.InTopic {
			return fmt.Errorf("stage %q input %q does not chain from %q output %q",
				spec.Name, spec.InTopic, specs[i-1].Name, specs[i-1].OutTopic)
		}
	}

	return nil
}
