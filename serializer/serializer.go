// Package serializer turns Go values into record payloads and back.
package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/maxpert/recordstream/encoding"
	"github.com/maxpert/recordstream/model"
)

// Serializer converts objects to payloads of one representation.
type Serializer interface {
	Representation() model.SerializerRepresentation
	Serialize(obj any) (model.Payload, error)
	Deserialize(p model.Payload, out any) error
}

// Factory builds serializers by representation.
type Factory interface {
	BuildSerializer(rep model.SerializerRepresentation) (Serializer, error)
}

// DefaultFactory supports msgpack and json, optionally zstd compressed.
type DefaultFactory struct {
	describer *Describer
}

// NewFactory creates a factory whose serializers stamp payload types with
// describer. A nil describer gets a default-sized one.
func NewFactory(describer *Describer) *DefaultFactory {
	if describer == nil {
		describer = NewDescriber(DefaultDescribeCacheSize)
	}
	return &DefaultFactory{describer: describer}
}

func (f *DefaultFactory) BuildSerializer(rep model.SerializerRepresentation) (Serializer, error) {
	switch rep.Compression {
	case model.CompressionNone, model.CompressionZstd:
	default:
		return nil, &model.NotSupportedError{What: "compression", Value: rep.Compression}
	}

	var c codec
	switch rep.Kind {
	case model.SerializationKindMsgpack:
		c = msgpackCodec{}
	case model.SerializationKindJSON:
		c = jsonCodec{}
	default:
		return nil, &model.NotSupportedError{What: "serialization kind", Value: rep.Kind}
	}
	return &serializer{rep: rep, codec: c, describer: f.describer}, nil
}

type codec interface {
	marshal(v any) ([]byte, error)
	unmarshal(data []byte, v any) error
	textual() bool
}

type msgpackCodec struct{}

func (msgpackCodec) marshal(v any) ([]byte, error)      { return encoding.Marshal(v) }
func (msgpackCodec) unmarshal(data []byte, v any) error { return encoding.Unmarshal(data, v) }
func (msgpackCodec) textual() bool                      { return false }

type jsonCodec struct{}

func (jsonCodec) marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) textual() bool                      { return true }

type serializer struct {
	rep       model.SerializerRepresentation
	codec     codec
	describer *Describer
}

func (s *serializer) Representation() model.SerializerRepresentation {
	return s.rep
}

// Serialize encodes obj. Uncompressed json is stored as text, everything
// else as binary.
func (s *serializer) Serialize(obj any) (model.Payload, error) {
	data, err := s.codec.marshal(obj)
	if err != nil {
		return model.Payload{}, fmt.Errorf("serialize %T as %s: %w", obj, s.rep.Kind, err)
	}

	p := model.Payload{
		Type:       s.describer.Describe(obj),
		Serializer: s.rep,
	}
	if s.rep.Compression == model.CompressionZstd {
		p.Format = model.SerializationFormatBinary
		p.Binary = compress(data)
		return p, nil
	}
	if s.codec.textual() {
		p.Format = model.SerializationFormatString
		p.Text = string(data)
		return p, nil
	}
	p.Format = model.SerializationFormatBinary
	p.Binary = data
	return p, nil
}

func (s *serializer) Deserialize(p model.Payload, out any) error {
	if p.Serializer != s.rep {
		return model.NewArgumentError("payload", "serialized as %s/%s, serializer is %s/%s",
			p.Serializer.Kind, p.Serializer.Compression, s.rep.Kind, s.rep.Compression)
	}

	data := p.Bytes()
	if s.rep.Compression == model.CompressionZstd {
		var err error
		if data, err = decompress(data); err != nil {
			return fmt.Errorf("decompress payload: %w", err)
		}
	}
	if err := s.codec.unmarshal(data, out); err != nil {
		return fmt.Errorf("deserialize %s payload into %T: %w", s.rep.Kind, out, err)
	}
	return nil
}
