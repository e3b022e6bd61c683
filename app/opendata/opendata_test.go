package opendata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "\ufeffCase_ID, Address_Street ,description\n" +
	"1,  100 Main St ,Noise\n" +
	"\n" +
	"2,200 Oak Ave\n" +
	"3,300 Pine Rd,Trash\n"

func TestParse(t *testing.T) {
	rows, err := Parse(strings.NewReader(sample), 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "100 Main St", rows[0].Get("address_street"))
	assert.Equal(t, "1", rows[0].Get("case_id"))
	assert.Equal(t, "", rows[1].Get("description"))
}

func TestParseLimit(t *testing.T) {
	rows, err := Parse(strings.NewReader(sample), 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestParseEmpty(t *testing.T) {
	rows, err := Parse(strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	c := NewClient()
	rows, err := c.Fetch(context.Background(), srv.URL+"/data.csv", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = c.Fetch(context.Background(), srv.URL+"/missing.csv", 0)
	assert.EqualError(t, err, "CSV fetch failed: 404 Not Found")
}
