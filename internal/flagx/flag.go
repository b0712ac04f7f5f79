// Package flagx lets several components read their own flags from os.Args
// without tripping over each other's.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the arguments of args that belong to allowedFlags,
// together with their values. Both "-f value" and "-f=value" are understood;
// a following argument that starts with "-" is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// ConfigPath returns the config file named by -c or -config, or "" when
// neither is given. The last occurrence wins.
func ConfigPath() string {
	return ConfigPathFrom(os.Args[1:])
}

// ConfigPathFrom is ConfigPath over an explicit argument list.
func ConfigPathFrom(args []string) string {
	var config string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "path to config file (JSON or YAML)")
	fs.StringVar(&config, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return config
}
