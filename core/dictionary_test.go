package core

import (
	"bytes"
	"strings"
	"testing"
)

func TestDictionary(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())

	dict.AddConstant("TEST_CONST", uint32(42))
	dict.AddConstant("TEST_STR", "hello")
	dict.AddConstant("A_FIRST", 7)

	dict.commandReg.Register("test_response", "value=%u", nil)
	dict.commandReg.Register("test_cmd", "arg=%u", func(data *[]byte) error {
		return nil
	})

	output := string(dict.Generate())
	t.Log("Generated dictionary:\n" + output)

	if !strings.HasPrefix(output, `{"version":"greendot-0.2.0"`) {
		t.Error("Dictionary missing version")
	}
	if !strings.Contains(output, `"TEST_CONST":"42"`) {
		t.Error("Dictionary missing TEST_CONST")
	}
	if !strings.Contains(output, `"TEST_STR":"hello"`) {
		t.Error("Dictionary missing TEST_STR")
	}
	if !strings.Contains(output, `"commands":{"test_cmd arg=%u":1}`) {
		t.Error("Dictionary missing test_cmd")
	}
	if !strings.Contains(output, `"responses":{"test_response value=%u":0}`) {
		t.Error("Dictionary missing test_response")
	}

	// Constants are sorted by name
	if strings.Index(output, "A_FIRST") > strings.Index(output, "TEST_CONST") {
		t.Error("Constants not sorted")
	}
}

func TestDictionaryCache(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.AddConstant("PROFILE", "base")
	dict.BuildDictionary()

	first := dict.Generate()
	if !bytes.Equal(first, dict.Generate()) {
		t.Error("Cached dictionary changed between calls")
	}

	// Adding a constant invalidates the cache
	dict.AddConstant("PROFILE", "extended")
	if !strings.Contains(string(dict.Generate()), `"PROFILE":"extended"`) {
		t.Error("Dictionary not rebuilt after AddConstant")
	}
}

func TestDictionaryChunks(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.AddConstant("TEST", uint32(123))
	full := dict.Generate()

	// Reassemble in 40-byte chunks like the host does
	var got []byte
	for offset := uint32(0); ; offset += 40 {
		chunk := dict.GetChunk(offset, 40)
		if len(chunk) == 0 {
			break
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, full) {
		t.Errorf("Reassembled dictionary differs:\n got %s\nwant %s", got, full)
	}

	if chunk := dict.GetChunk(uint32(len(full))+10, 40); len(chunk) != 0 {
		t.Errorf("Expected empty chunk past the end, got %d bytes", len(chunk))
	}
}

func TestDictionaryVersion(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.BuildDictionary()

	dict.SetVersion("greendot-1.2.3")
	if output := string(dict.Generate()); !strings.HasPrefix(output, `{"version":"greendot-1.2.3"`) {
		t.Errorf("SetVersion not reflected: %s", output)
	}
}
