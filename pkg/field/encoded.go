package field

import "github.com/cronokirby/saferith"

// Encoded is the untyped, wire/storage form of a field element: raw
// little-endian bytes plus the modulus tag they were produced under. It is
// the only representation of a field element that crosses a process
// boundary or gets persisted; typed Elements never do.
type Encoded struct {
	Tag   Tag
	Bytes []byte
}

// Encode converts e to its wire form. Bytes are little-endian and padded to
// the modulus's declared byte width.
func Encode[F Prime](e Element[F]) Encoded {
	p := paramsOfElement(e)
	normal := e.Normal().Bytes() // big-endian from saferith
	out := make([]byte, p.byteLen)
	// reverse into little-endian, right-aligned within out
	for i, b := range normal {
		out[len(normal)-1-i] = b
	}
	return Encoded{Tag: p.byteLen2tag(), Bytes: out}
}

func (p *params) byteLen2tag() Tag {
	for tag, candidate := range registry {
		if candidate == p {
			return tag
		}
	}
	panic("field: params not registered under any tag")
}

// Decode converts an Encoded value back into a typed Element[F]. It fails
// with ErrModuloMismatch if enc's tag does not name F's modulus, or
// ErrValueLength if the byte count is wrong for that modulus.
func Decode[F Prime](enc Encoded) (Element[F], error) {
	var f F
	if enc.Tag != f.Tag() {
		return Element[F]{}, ErrModuloMismatch
	}
	p := paramsOf[F]()
	if len(enc.Bytes) != p.byteLen {
		return Element[F]{}, ErrValueLength
	}
	be := make([]byte, len(enc.Bytes))
	for i, b := range enc.Bytes {
		be[len(enc.Bytes)-1-i] = b
	}
	n := new(saferith.Nat).SetBytes(be)
	return toMontgomery[F](n), nil
}

// Handler is a trait object: a runtime-dispatchable stand-in for a typed
// Prime, used where the modulus is only known via its Tag (e.g. a message
// just received off the wire). One Handler implementation exists per
// registered Tag; HandlerFor looks it up.
type Handler interface {
	Tag() Tag
	// Add decodes both operands under this handler's modulus, adds them,
	// and re-encodes the result. Returns ErrModuloMismatch if either
	// operand's tag disagrees with this handler's.
	Add(a, b Encoded) (Encoded, error)
	Mul(a, b Encoded) (Encoded, error)
}

type handlerImpl[F Prime] struct{}

func (handlerImpl[F]) Tag() Tag {
	var f F
	return f.Tag()
}

func (h handlerImpl[F]) Add(a, b Encoded) (Encoded, error) {
	ea, err := Decode[F](a)
	if err != nil {
		return Encoded{}, err
	}
	eb, err := Decode[F](b)
	if err != nil {
		return Encoded{}, err
	}
	return Encode(ea.Add(eb)), nil
}

func (h handlerImpl[F]) Mul(a, b Encoded) (Encoded, error) {
	ea, err := Decode[F](a)
	if err != nil {
		return Encoded{}, err
	}
	eb, err := Decode[F](b)
	if err != nil {
		return Encoded{}, err
	}
	return Encode(ea.Mul(eb)), nil
}

// handlerRegistry maps each Tag to a default-constructed Handler, built once
// so HandlerFor never allocates.
var handlerRegistry = map[Tag]Handler{
	TagSafe64:    handlerImpl[Safe64]{},
	TagSophie64:  handlerImpl[Sophie64]{},
	TagSemi64:    handlerImpl[Semi64]{},
	TagSafe128:   handlerImpl[Safe128]{},
	TagSophie128: handlerImpl[Sophie128]{},
	TagSemi128:   handlerImpl[Semi128]{},
	TagSafe256:   handlerImpl[Safe256]{},
	TagSophie256: handlerImpl[Sophie256]{},
	TagSemi256:   handlerImpl[Semi256]{},
}

// HandlerFor returns the Handler registered for tag.
func HandlerFor(tag Tag) (Handler, error) {
	h, ok := handlerRegistry[tag]
	if !ok {
		return nil, ErrModuloMismatch
	}
	return h, nil
}

// SafePrimeHandlerFor is like HandlerFor but fails with ErrNotSafePrime for
// any tag that does not name a safe prime, for callers (e.g. the ECDSA-AUX
// protocol) that require the safe-prime structure.
func SafePrimeHandlerFor(tag Tag) (Handler, error) {
	if !IsSafePrime(tag) {
		return nil, ErrNotSafePrime
	}
	return HandlerFor(tag)
}
