package dbus

import (
	"strings"

	godbus "github.com/godbus/dbus/v5"
)

// Match selects the signals a subscription receives. Empty fields match
// anything.
//
// The rule is installed on the bus with AddMatch and applied again locally,
// because every subscription on a connection sees every routed signal.
// Signals carry the sender's unique name, so a well-known Sender is checked
// locally against the owner Conn.Subscribe resolved when it installed m.
type Match struct {
	Sender        string
	Interface     string
	Member        string
	Path          ObjectPath
	PathNamespace ObjectPath
	// Arg0Path requires the first body argument to be an object path
	// strictly beneath this one.
	Arg0Path ObjectPath

	// owner is the unique name that held Sender at subscribe time.
	owner string
}

func (m Match) options() []godbus.MatchOption {
	var opts []godbus.MatchOption
	if m.Sender != "" {
		opts = append(opts, godbus.WithMatchSender(m.Sender))
	}
	if m.Interface != "" {
		opts = append(opts, godbus.WithMatchInterface(m.Interface))
	}
	if m.Member != "" {
		opts = append(opts, godbus.WithMatchMember(m.Member))
	}
	if m.Path != "" {
		opts = append(opts, godbus.WithMatchObjectPath(m.Path))
	}
	if m.PathNamespace != "" {
		opts = append(opts, godbus.WithMatchPathNamespace(m.PathNamespace))
	}
	if m.Arg0Path != "" {
		opts = append(opts, godbus.WithMatchArgPath(0, withSlash(m.Arg0Path)))
	}
	return opts
}

// Matches reports whether sig satisfies every local criterion of m.
func (m Match) Matches(sig *Signal) bool {
	if sig == nil {
		return false
	}
	if owner := m.senderOwner(); owner != "" && sig.Sender != owner {
		return false
	}
	if m.Interface != "" && sig.Interface != m.Interface {
		return false
	}
	if m.Member != "" && sig.Member != m.Member {
		return false
	}
	if m.Path != "" && sig.Path != m.Path {
		return false
	}
	if m.PathNamespace != "" && !InNamespace(sig.Path, m.PathNamespace) {
		return false
	}
	if m.Arg0Path != "" {
		if len(sig.Body) == 0 {
			return false
		}
		var arg string
		switch v := sig.Body[0].(type) {
		case ObjectPath:
			arg = string(v)
		case string:
			arg = v
		default:
			return false
		}
		if !strings.HasPrefix(arg, withSlash(m.Arg0Path)) {
			return false
		}
	}
	return true
}

// senderOwner returns the unique name signals must come from, or "" when
// the sender cannot be checked locally.
func (m Match) senderOwner() string {
	if m.owner != "" {
		return m.owner
	}
	if isUniqueName(m.Sender) {
		return m.Sender
	}
	return ""
}

func isUniqueName(name string) bool {
	return strings.HasPrefix(name, ":")
}

// InNamespace reports whether path equals ns or lies beneath it.
func InNamespace(path, ns ObjectPath) bool {
	if ns == "/" || path == ns {
		return true
	}
	return strings.HasPrefix(string(path), withSlash(ns))
}

func withSlash(p ObjectPath) string {
	s := string(p)
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
