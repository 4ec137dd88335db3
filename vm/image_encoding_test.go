package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestImageRoundTrip(t *testing.T) {
	env := NewEnvironment()
	env.Set("n", Integer(-12))
	env.Set("zero", Integer(0))
	env.Set("s", Text("hello\nworld"))
	env.Set("empty", Text(""))
	env.Set("t", Boolean(true))
	env.Set("f", Boolean(false))
	env.Set("nothing", Null{})
	env.Set("ref", Identifier("n"))
	env.Set("block", MustCall(';',
		MustCall('O', Identifier("s")),
		MustCall('+', Integer(1), MustCall('P'))))

	var buf bytes.Buffer
	if err := SaveImage(&buf, env); err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	loaded, err := LoadImage(&buf, nil)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}

	if loaded.Len() != env.Len() {
		t.Fatalf("loaded %d globals, want %d", loaded.Len(), env.Len())
	}
	for _, name := range env.Names() {
		want, _ := env.Get(name)
		got, ok := loaded.Get(name)
		if !ok {
			t.Errorf("global %q missing", name)
			continue
		}
		if Dump(got) != Dump(want) || got.TypeName() != want.TypeName() {
			t.Errorf("global %q = %s, want %s", name, Dump(got), Dump(want))
		}
	}
}

func TestImageIsDeterministic(t *testing.T) {
	env := NewEnvironment()
	for _, name := range []string{"c", "a", "b"} {
		env.Set(name, MustCall('+', Text(name), Integer(1)))
	}
	first, err := MarshalImage(env)
	if err != nil {
		t.Fatal(err)
	}
	second, err := MarshalImage(env)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two encodings of the same environment differ")
	}
}

func TestImagePreservesSharedNodes(t *testing.T) {
	shared := MustCall('R')
	env := NewEnvironment()
	env.Set("x", shared)
	env.Set("y", shared)
	env.Set("pair", MustCall(';', shared, shared))

	data, err := MarshalImage(env)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := UnmarshalImage(data, nil)
	if err != nil {
		t.Fatal(err)
	}

	x, _ := loaded.Get("x")
	y, _ := loaded.Get("y")
	if !Equal(x, y) {
		t.Error("x and y no longer refer to the same node")
	}
	pair, _ := loaded.Get("pair")
	op := pair.(*Operation)
	if op.Args[0] != x || op.Args[1] != x {
		t.Error("operands of pair are not the shared node")
	}
}

func TestImageRejectsBadInput(t *testing.T) {
	encode := func(f imageFile) []byte {
		data, err := imageEncMode.Marshal(&f)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"garbage", []byte{0xff, 0x00}, "unmarshal image"},
		{"version", encode(imageFile{Version: 99}), "unsupported image version"},
		{"unknown function", encode(imageFile{
			Version: ImageVersion,
			Nodes:   []imageNode{{Op: 'Z'}},
		}), "unknown function"},
		{"arity", encode(imageFile{
			Version: ImageVersion,
			Nodes:   []imageNode{{Op: '+', Args: []imageValue{{Kind: imageKindInteger, Int: 1}}}},
		}), "expected 2 operands"},
		{"forward reference", encode(imageFile{
			Version: ImageVersion,
			Nodes:   []imageNode{{Op: 'B', Args: []imageValue{{Kind: imageKindOperation, Node: 0}}}},
		}), "out of range"},
		{"unknown kind", encode(imageFile{
			Version: ImageVersion,
			Globals: map[string]imageValue{"x": {Kind: 42}},
		}), "unknown image value kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalImage(tt.data, nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestImageUsesKeyedMaps(t *testing.T) {
	env := NewEnvironment()
	env.Set("x", Integer(1))
	data, err := MarshalImage(env)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[int]any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		t.Fatalf("image is not a CBOR map: %v", err)
	}
	if _, ok := raw[1]; !ok {
		t.Error("version key missing")
	}
}
