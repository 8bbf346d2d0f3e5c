package fetch

import (
	"github.com/chaseruskin/orbit/internal/config"
	"github.com/chaseruskin/orbit/internal/substitution"
)

// Protocol is a dynamic-dispatch variant record: new protocols are added
// by configuration, never by loading code. DefaultHTTPZip
// is the built-in URL+zip flow; NamedExternalCommand spawns whatever
// command/args the matching [[protocol]] config table names.
type Protocol struct {
	Named *config.Protocol // nil selects DefaultHTTPZip
}

// ResolveProtocol picks a Protocol for a source record: an explicit
// source.protocol name looked up in cfg.Protocol, or DefaultHTTPZip when
// source.protocol is empty.
func ResolveProtocol(cfg *config.Config, name string) Protocol {
	if name == "" {
		return Protocol{}
	}

	if p, ok := cfg.Protocol[name]; ok {
		proto := p

		return Protocol{Named: &proto}
	}

	return Protocol{}
}

// IsDefault reports whether this protocol is the built-in HTTP/zip flow.
func (p Protocol) IsDefault() bool { return p.Named == nil }

// ArgVector builds the substituted argument vector for a
// NamedExternalCommand protocol invocation, restricted to the
// protocol-argument-vector allow-list.
func ArgVector(proto Protocol, vars substitution.Resolver) []string {
	if proto.Named == nil {
		return nil
	}

	restricted := substitution.AllowedKeys{Inner: vars, Allowed: substitution.AllowedInProtocolArgumentVector}

	out := make([]string, len(proto.Named.Args))
	for i, a := range proto.Named.Args {
		out[i] = substitution.Expand(a, restricted)
	}

	return out
}
