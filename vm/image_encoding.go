package vm

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Image encoding: the global Environment as canonical CBOR
// ---------------------------------------------------------------------------

// ImageVersion is written into every image; images with another version are
// rejected.
const ImageVersion = 1

const (
	imageKindInteger byte = iota + 1
	imageKindText
	imageKindBoolean
	imageKindNull
	imageKindIdentifier
	imageKindOperation
)

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// imageFile is the top-level record. Operations are stored once in Nodes,
// children before parents, so a node shared by several globals (or several
// places in one tree) is still a single node after loading.
type imageFile struct {
	Version int                   `cbor:"1,keyasint"`
	Nodes   []imageNode           `cbor:"2,keyasint,omitempty"`
	Globals map[string]imageValue `cbor:"3,keyasint"`
}

type imageNode struct {
	Op   byte         `cbor:"1,keyasint"`
	Args []imageValue `cbor:"2,keyasint,omitempty"`
}

type imageValue struct {
	Kind byte   `cbor:"1,keyasint"`
	Int  int64  `cbor:"2,keyasint,omitempty"`
	Str  string `cbor:"3,keyasint,omitempty"`
	Bool bool   `cbor:"4,keyasint,omitempty"`
	Node int    `cbor:"5,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// ImageEncoder: assigns node indices to operations
// ---------------------------------------------------------------------------

type imageEncoder struct {
	index map[*Operation]int
	nodes []imageNode
}

func (e *imageEncoder) encode(v Value) (imageValue, error) {
	switch v := v.(type) {
	case Integer:
		return imageValue{Kind: imageKindInteger, Int: int64(v)}, nil
	case Text:
		return imageValue{Kind: imageKindText, Str: string(v)}, nil
	case Boolean:
		return imageValue{Kind: imageKindBoolean, Bool: bool(v)}, nil
	case Null:
		return imageValue{Kind: imageKindNull}, nil
	case Identifier:
		return imageValue{Kind: imageKindIdentifier, Str: string(v)}, nil
	case *Operation:
		if idx, ok := e.index[v]; ok {
			return imageValue{Kind: imageKindOperation, Node: idx}, nil
		}
		args := make([]imageValue, len(v.Args))
		for i, arg := range v.Args {
			enc, err := e.encode(arg)
			if err != nil {
				return imageValue{}, err
			}
			args[i] = enc
		}
		idx := len(e.nodes)
		e.nodes = append(e.nodes, imageNode{Op: v.Fn.Name, Args: args})
		e.index[v] = idx
		return imageValue{Kind: imageKindOperation, Node: idx}, nil
	}
	return imageValue{}, fmt.Errorf("vm: cannot encode %T in image", v)
}

// MarshalImage encodes every binding in env.
func MarshalImage(env *Environment) ([]byte, error) {
	enc := &imageEncoder{index: make(map[*Operation]int)}
	file := imageFile{Version: ImageVersion, Globals: make(map[string]imageValue, env.Len())}
	for _, name := range env.Names() {
		v, _ := env.Get(name)
		iv, err := enc.encode(v)
		if err != nil {
			return nil, fmt.Errorf("vm: encode global %q: %w", name, err)
		}
		file.Globals[name] = iv
	}
	file.Nodes = enc.nodes
	return imageEncMode.Marshal(&file)
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

type imageDecoder struct {
	reg   *Registry
	nodes []*Operation
}

func (d *imageDecoder) decode(iv imageValue, limit int) (Value, error) {
	switch iv.Kind {
	case imageKindInteger:
		return Integer(iv.Int), nil
	case imageKindText:
		return Text(iv.Str), nil
	case imageKindBoolean:
		return Boolean(iv.Bool), nil
	case imageKindNull:
		return Null{}, nil
	case imageKindIdentifier:
		if iv.Str == "" {
			return nil, errors.New("vm: empty identifier in image")
		}
		return Identifier(iv.Str), nil
	case imageKindOperation:
		if iv.Node < 0 || iv.Node >= limit {
			return nil, fmt.Errorf("vm: image node %d out of range", iv.Node)
		}
		return d.nodes[iv.Node], nil
	}
	return nil, fmt.Errorf("vm: unknown image value kind %d", iv.Kind)
}

// UnmarshalImage decodes an image into a fresh Environment. Opcodes are
// resolved against reg (Builtins when nil) and arities are re-checked.
func UnmarshalImage(data []byte, reg *Registry) (*Environment, error) {
	if reg == nil {
		reg = Builtins
	}
	var file imageFile
	if err := cbor.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("vm: unmarshal image: %w", err)
	}
	if file.Version != ImageVersion {
		return nil, fmt.Errorf("vm: unsupported image version %d", file.Version)
	}

	d := &imageDecoder{reg: reg, nodes: make([]*Operation, len(file.Nodes))}
	for i, node := range file.Nodes {
		fn := reg.Lookup(node.Op)
		if fn == nil {
			return nil, fmt.Errorf("vm: image node %d: unknown function %q", i, string(node.Op))
		}
		args := make([]Value, len(node.Args))
		for j, arg := range node.Args {
			// Children always precede their parent.
			v, err := d.decode(arg, i)
			if err != nil {
				return nil, fmt.Errorf("vm: image node %d: %w", i, err)
			}
			args[j] = v
		}
		op, err := NewOperation(fn, args)
		if err != nil {
			return nil, fmt.Errorf("vm: image node %d: %w", i, err)
		}
		d.nodes[i] = op
	}

	env := NewEnvironment()
	for name, iv := range file.Globals {
		v, err := d.decode(iv, len(d.nodes))
		if err != nil {
			return nil, fmt.Errorf("vm: global %q: %w", name, err)
		}
		env.Set(name, v)
	}
	return env, nil
}

// SaveImage writes env to w.
func SaveImage(w io.Writer, env *Environment) error {
	data, err := MarshalImage(env)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// LoadImage reads an image written by SaveImage.
func LoadImage(r io.Reader, reg *Registry) (*Environment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("vm: read image: %w", err)
	}
	return UnmarshalImage(data, reg)
}
