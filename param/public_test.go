package param

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseOptionsHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		main   string
		params map[string][]byte
	}{
		{"simple", "application/json", "application/json", map[string][]byte{}},
		{"blank", "", "", map[string][]byte{}},
		{"single param", "application/json;par=val", "application/json", map[string][]byte{"par": []byte("val")}},
		{"single param with spaces", "application/json;     par=val", "application/json", map[string][]byte{"par": []byte("val")}},
		{"multiple params", "application/json;par=val;asdf=foo", "application/json", map[string][]byte{"par": []byte("val"), "asdf": []byte("foo")}},
		{"quoted param", `application/json;param="quoted"`, "application/json", map[string][]byte{"param": []byte("quoted")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main, params := ParseOptionsHeader([]byte(tt.header))
			assert.Equal(t, tt.main, string(main))
			assert.Equal(t, len(tt.params), len(params))
			for k, v := range tt.params {
				assert.Equal(t, string(v), string(params[k]))
			}
		})
	}
}

func TestParseOptionsHeaderQuotedWithSemicolons(t *testing.T) {
	_, p := ParseOptionsHeader([]byte(`application/json;param="quoted;with;semicolons"`))
	assert.Equal(t, "quoted;with;semicolons", string(p["param"]))
}

func TestParseOptionsHeaderQuotedWithEscapes(t *testing.T) {
	_, p := ParseOptionsHeader([]byte(`application/json;param="This \" is \" a \" quote"`))
	assert.Equal(t, `This " is " a " quote`, string(p["param"]))
}

func TestParseOptionsHeaderIE6Bug(t *testing.T) {
	_, p := ParseOptionsHeader([]byte(`text/plain; filename="C:\this\is\a\path\file.txt"`))
	assert.Equal(t, "file.txt", string(p["filename"]))
}

func TestParseOptionsHeaderRedosGuard(t *testing.T) {
	backslashes := strings.Repeat(`\\`, 100)
	header := []byte(`application/x-www-form-urlencoded; !="` + backslashes + `"`)

	done := make(chan struct{})
	var params map[string][]byte
	go func() {
		_, params = ParseOptionsHeader(header)
		close(done)
	}()

	select {
	case <-done:
		assert.True(t, strings.Contains(string(params["!"]), `"\`) || len(params["!"]) > 0)
	case <-time.After(2 * time.Second):
		t.Fatal("ParseOptionsHeader did not complete in time: possible backtracking blowup")
	}
}
