package model

// ScriptKind enumerates the script hooks a package may carry (§3, §4.F).
type ScriptKind int

const (
	ScriptInvalid ScriptKind = iota
	ScriptPreInstall
	ScriptPostInstall
	ScriptPreUpgrade
	ScriptPostUpgrade
	ScriptPreDeinstall
	ScriptPostDeinstall
	ScriptGeneric
)

func (k ScriptKind) String() string {
	switch k {
	case ScriptPreInstall:
		return "pre-install"
	case ScriptPostInstall:
		return "post-install"
	case ScriptPreUpgrade:
		return "pre-upgrade"
	case ScriptPostUpgrade:
		return "post-upgrade"
	case ScriptPreDeinstall:
		return "pre-deinstall"
	case ScriptPostDeinstall:
		return "post-deinstall"
	case ScriptGeneric:
		return "generic"
	default:
		return "invalid"
	}
}

// ScriptKindFromAPKv1 maps an APK 1.0 "var/db/apk/<name>/<version>/<kind>"
// basename to a ScriptKind, or ScriptInvalid if unrecognized (§4.G).
func ScriptKindFromAPKv1(name string) ScriptKind {
	switch name {
	case "pre-install":
		return ScriptPreInstall
	case "post-install":
		return ScriptPostInstall
	case "pre-upgrade":
		return ScriptPreUpgrade
	case "post-upgrade":
		return ScriptPostUpgrade
	case "pre-deinstall":
		return ScriptPreDeinstall
	case "post-deinstall":
		return ScriptPostDeinstall
	default:
		return ScriptInvalid
	}
}

// Script is one stored executable payload belonging to a package.
type Script struct {
	Kind  ScriptKind
	Bytes []byte
}

// Size returns the payload length.
func (s *Script) Size() int64 { return int64(len(s.Bytes)) }
