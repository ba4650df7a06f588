package topic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmedemos/choreo/pkg/choreo/topic"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		params  map[string]any
		want    string
	}{
		{
			"single placeholder",
			"acct/{accountID}/applied",
			map[string]any{"accountID": "12345"},
			"acct/12345/applied",
		},
		{
			"multiple placeholders",
			"acmestore/payment/{verb}/v1/{regionId}/{paymentId}",
			map[string]any{"verb": "created", "regionId": "DE", "paymentId": "881"},
			"acmestore/payment/created/v1/DE/881",
		},
		{
			"numeric value",
			"fraud/{transactionID}/{amount}",
			map[string]any{"transactionID": 42, "amount": 50.5},
			"fraud/42/50.5",
		},
		{
			"unmapped placeholder stays literal",
			"acct/{missing}/x",
			map[string]any{"accountID": "12345"},
			"acct/{missing}/x",
		},
		{
			"no placeholders",
			"acct/applied/v1",
			map[string]any{"accountID": "12345"},
			"acct/applied/v1",
		},
		{
			"empty pattern",
			"",
			map[string]any{"a": "b"},
			"",
		},
		{
			"nil params keep placeholders",
			"a/{x}/b/{y}",
			nil,
			"a/{x}/b/{y}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := topic.Render(tt.pattern, tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRendererMissingEmpty(t *testing.T) {
	r := topic.NewRenderer(topic.WithMissingAction(topic.MissingEmpty))
	got, err := r.Render("a/{x}/b", nil)
	require.NoError(t, err)
	assert.Equal(t, "a//b", got)
}

func TestRendererMissingError(t *testing.T) {
	r := topic.NewRenderer(topic.WithMissingAction(topic.MissingError))

	_, err := r.Render("a/{x}/b/{y}", map[string]any{"x": 1})
	require.Error(t, err)

	var undefErr *topic.UndefinedParamError
	require.ErrorAs(t, err, &undefErr)
	assert.Equal(t, []string{"y"}, undefErr.Names)

	got, err := r.Render("a/{x}", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "a/1", got)
}
