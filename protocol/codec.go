package protocol

import (
	"fmt"
	"sort"

	"github.com/viant/artifex/internal/yml"
	"gopkg.in/yaml.v3"
)

// codec groups pure functions handling a single wire version.  decode turns
// the parsed document into that version's wire value; upgrade migrates the
// wire value to the next version.  The latest codec decodes straight into
// *Message and has no upgrade.
type codec struct {
	version int
	decode  func(node *yml.Node) (interface{}, error)
	upgrade func(value interface{}) (interface{}, error)
}

var (
	registry = newRegistry(
		&codec{version: 1, decode: decodeV1, upgrade: upgradeV1},
		&codec{version: 2, decode: decodeV2, upgrade: upgradeV2},
		&codec{version: 3, decode: decodeV3},
	)
	latest = latestVersion(registry)
)

func newRegistry(codecs ...*codec) map[int]*codec {
	ret := make(map[int]*codec, len(codecs))
	for _, c := range codecs {
		ret[c.version] = c
	}
	return ret
}

func latestVersion(codecs map[int]*codec) int {
	ret := 0
	for version := range codecs {
		if version > ret {
			ret = version
		}
	}
	return ret
}

// Latest returns the canonical wire version
func Latest() int {
	return latest
}

// Versions returns all supported wire versions in ascending order
func Versions() []int {
	ret := make([]int, 0, len(registry))
	for version := range registry {
		ret = append(ret, version)
	}
	sort.Ints(ret)
	return ret
}

// Decode reads the version tag, decodes with that version's schema and
// upgrades the result to the latest in-memory representation.
func Decode(data []byte) (*Message, error) {
	root, err := yml.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	versionNode := root.Lookup("version")
	if versionNode == nil {
		return nil, fmt.Errorf("%w: missing version", ErrMalformedPayload)
	}
	version, err := versionNode.Int()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version: %v", ErrMalformedPayload, err)
	}
	aCodec, ok := registry[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	value, err := aCodec.decode(root)
	if err != nil {
		return nil, fmt.Errorf("%w: v%d: %v", ErrMalformedPayload, version, err)
	}
	for v := version; v < latest; v++ {
		step, ok := registry[v]
		if !ok || step.upgrade == nil {
			return nil, fmt.Errorf("%w: no migration from v%d", ErrUnsupportedVersion, v)
		}
		if value, err = step.upgrade(value); err != nil {
			return nil, fmt.Errorf("%w: v%d->v%d: %v", ErrMalformedPayload, v, v+1, err)
		}
	}
	msg, ok := value.(*Message)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected decoded type %T", ErrMalformedPayload, value)
	}
	if err = msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode serializes message with the latest wire version
func Encode(msg *Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	out := *msg
	out.Version = latest
	return yaml.Marshal(&out)
}

func decodeV3(node *yml.Node) (interface{}, error) {
	msg := &Message{}
	if err := node.Decode(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
