package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyFor_Namespaces(t *testing.T) {
	assert.Equal(t, "session:abc123", keyFor("abc123"))
}

func TestData_JSONRoundTrip(t *testing.T) {
	data := Data{GameID: "g1", PlayerID: "p1", PlayerName: "Alice"}

	blob, err := json.Marshal(data)
	assert.NoError(t, err)

	var got Data
	assert.NoError(t, json.Unmarshal(blob, &got))
	assert.Equal(t, data, got)
}
