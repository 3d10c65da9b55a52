package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/docflow/internal/events"
)

func TestGraphIsValid(t *testing.T) {
	assert.NoError(t, ValidateGraph(Graph()))
}

func TestValidateGraphRejectsEmpty(t *testing.T) {
	assert.Error(t, ValidateGraph(nil))
}

func TestValidateGraphRejectsDuplicateName(t *testing.T) {
	specs := []StageSpec{
		{Name: "ingestor", InTopic: events.TopicInitialize, OutTopic: events.TopicReceived},
		{Name: "ingestor", InTopic: events.TopicReceived, OutTopic: events.TopicText},
	}
	assert.ErrorContains(t, ValidateGraph(specs), "duplicate stage name")
}

func TestValidateGraphRejectsUnknownTopic(t *testing.T) {
	specs := []StageSpec{
		{Name: "ingestor", InTopic: "doc.bogus", OutTopic: events.TopicReceived},
	}
	assert.ErrorContains(t, ValidateGraph(specs), "unknown topic")
}

func TestValidateGraphRejectsSharedInput(t *testing.T) {
	specs := []StageSpec{
		{Name: "ingestor", InTopic: events.TopicInitialize, OutTopic: events.TopicReceived},
		{Name: "extractor", InTopic: events.TopicReceived, OutTopic: events.TopicText},
		{Name: "shadow", InTopic: events.TopicReceived, OutTopic: events.TopicType},
	}
	assert.Error(t, ValidateGraph(specs))
}

func TestValidateGraphRejectsSelfLoop(t *testing.T) {
	specs := []StageSpec{
		{Name: "loop", InTopic: events.TopicText, OutTopic: events.TopicText},
	}
	assert.ErrorContains(t, ValidateGraph(specs), "own output")
}

func TestValidateGraphRejectsBrokenChain(t *testing.T) {
	specs := []StageSpec{
		{Name: "ingestor", InTopic: events.TopicInitialize, OutTopic: events.TopicReceived},
		{Name: "classifier", InTopic: events.TopicText, OutTopic: events.TopicType},
	}
	assert.ErrorContains(t, ValidateGraph(specs), "does not chain")
}
