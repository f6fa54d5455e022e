// Package targets resolves human readable notification targets such as
// "device/phone" or "channel/news" into Pushbullet recipients.
package targets

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the type segment of a target string.
type Kind string

const (
	KindDevice  Kind = "device"
	KindChannel Kind = "channel"
	KindEmail   Kind = "email"
)

var (
	ErrMissingSeparator = errors.New("target has no type/name separator")
	ErrUnknownKind      = errors.New("unknown target type")
)

// Target is a parsed "type/name" string. Name keeps the caller's casing.
type Target struct {
	Kind Kind
	Name string
	Raw  string
}

// Parse splits raw on its first "/". It only fails when the separator is
// missing; the kind is checked separately so email targets can be handled
// before kind validation.
func Parse(raw string) (Target, error) {
	kind, name, ok := strings.Cut(raw, "/")
	if !ok {
		return Target{Raw: raw}, fmt.Errorf("%w: %q", ErrMissingSeparator, raw)
	}
	return Target{Kind: Kind(kind), Name: name, Raw: raw}, nil
}

// Cached reports whether the kind is resolved through the target cache.
func (k Kind) Cached() bool {
	return k == KindDevice || k == KindChannel
}

// RecipientKind tags a Recipient.
type RecipientKind int

const (
	RecipientBroadcast RecipientKind = iota
	RecipientDevice
	RecipientChannel
	RecipientEmail
)

func (k RecipientKind) String() string {
	switch k {
	case RecipientBroadcast:
		return "broadcast"
	case RecipientDevice:
		return "device"
	case RecipientChannel:
		return "channel"
	case RecipientEmail:
		return "email"
	default:
		return "unknown"
	}
}

// Recipient is where a push is addressed. Handle holds the device iden, the
// channel tag or the email address depending on Kind; it is empty for
// Broadcast.
type Recipient struct {
	Kind   RecipientKind
	Handle string
	Name   string
}

func Broadcast() Recipient { return Recipient{Kind: RecipientBroadcast} }

func Email(address string) Recipient {
	return Recipient{Kind: RecipientEmail, Handle: address, Name: address}
}

func Device(iden, nickname string) Recipient {
	return Recipient{Kind: RecipientDevice, Handle: iden, Name: nickname}
}

func Channel(tag string) Recipient {
	return Recipient{Kind: RecipientChannel, Handle: tag, Name: tag}
}

func (r Recipient) String() string {
	if r.Kind == RecipientBroadcast {
		return "self"
	}
	return r.Kind.String() + "/" + r.Name
}
