package stream

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Kind tags the payload of an Envelope.
type Kind uint8

const (
	KindPlace Kind = iota + 1
	KindRemove
	KindViewChanged
	KindVisible
)

func (k Kind) String() string {
	switch k {
	case KindPlace:
		return "place"
	case KindRemove:
		return "remove"
	case KindViewChanged:
		return "view-changed"
	case KindVisible:
		return "visible"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Message is one world-streaming event.
type Message interface {
	Kind() Kind
	appendTo(b []byte) []byte
	unmarshal(b []byte) error
}

// Place adds an instance of a model to the scene.
type Place struct {
	Model    string
	ID       uint64
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
}

// Remove drops an instance. When Model is empty the owner is looked up by Hash.
type Remove struct {
	Model string
	Hash  uint64
	ID    uint64
}

// ViewChanged tells the viewer its visible set is about to be rebuilt.
type ViewChanged struct {
	Eye mgl32.Vec3
}

// Ref names one visible instance.
type Ref struct {
	Model string
	ID    uint64
}

// Visible lists the instances visible after the last ViewChanged.
type Visible struct {
	Refs []Ref
}

func (*Place) Kind() Kind       { return KindPlace }
func (*Remove) Kind() Kind      { return KindRemove }
func (*ViewChanged) Kind() Kind { return KindViewChanged }
func (*Visible) Kind() Kind     { return KindVisible }

func newMessage(k Kind) (Message, error) {
	switch k {
	case KindPlace:
		return &Place{}, nil
	case KindRemove:
		return &Remove{}, nil
	case KindViewChanged:
		return &ViewChanged{}, nil
	case KindVisible:
		return &Visible{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
}
