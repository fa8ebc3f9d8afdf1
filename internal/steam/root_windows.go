//go:build windows

package steam

import "golang.org/x/sys/windows/registry"

// DefaultRoot reads the Steam installation path from the registry, checking
// the per-user key first and the 32-bit machine key as fallback.
func DefaultRoot() string {
	if root := regString(registry.CURRENT_USER, `Software\Valve\Steam`, "SteamPath"); root != "" {
		return root
	}
	return regString(registry.LOCAL_MACHINE, `SOFTWARE\WOW6432Node\Valve\Steam`, "InstallPath")
}

func regString(root registry.Key, path, name string) string {
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		return ""
	}
	defer k.Close()

	v, _, err := k.GetStringValue(name)
	if err != nil {
		return ""
	}
	return v
}
