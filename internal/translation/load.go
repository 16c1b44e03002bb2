package translation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ibcol/portal/internal/common"
)

// ManifestFile lists, per namespace, the keys the default locale must define.
const ManifestFile = "manifest.yaml"

// Manifest is the decoded ManifestFile.
type Manifest struct {
	Namespaces map[string][]string `yaml:"namespaces"`
}

type unmarshalFunc func([]byte, any) error

var decoders = map[string]unmarshalFunc{
	".json": json.Unmarshal,
	".yaml": yaml.Unmarshal,
	".yml":  yaml.Unmarshal,
	".toml": toml.Unmarshal,
}

// tree is locale -> namespace -> dotted key -> value.
type tree map[string]map[string]map[string]string

// readTree loads every <locale>/<namespace>.<ext> file whose locale is in
// supported. Locale directory names are matched case-insensitively and
// recorded under the supported spelling.
func readTree(fsys fs.FS, supported []string) (tree, error) {
	out := tree{}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("%w: read locales: %v", common.ErrConfiguration, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		locale, ok := lookupLocale(e.Name(), supported)
		if !ok {
			continue
		}

		files, err := fs.ReadDir(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", common.ErrConfiguration, e.Name(), err)
		}
		for _, f := range files {
			ext := strings.ToLower(path.Ext(f.Name()))
			decode, ok := decoders[ext]
			if f.IsDir() || !ok {
				continue
			}
			ns := strings.TrimSuffix(f.Name(), path.Ext(f.Name()))

			name := path.Join(e.Name(), f.Name())
			data, err := fs.ReadFile(fsys, name)
			if err != nil {
				return nil, fmt.Errorf("%w: read %s: %v", common.ErrConfiguration, name, err)
			}

			var raw map[string]any
			if err := decode(data, &raw); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", common.ErrConfiguration, name, err)
			}

			flat := map[string]string{}
			if err := flatten("", raw, flat); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", common.ErrConfiguration, name, err)
			}

			if out[locale] == nil {
				out[locale] = map[string]map[string]string{}
			}
			if _, dup := out[locale][ns]; dup {
				return nil, fmt.Errorf("%w: namespace %s defined twice for %s", common.ErrConfiguration, ns, locale)
			}
			out[locale][ns] = flat
		}
	}
	return out, nil
}

func readManifest(fsys fs.FS) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, ManifestFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %v", common.ErrConfiguration, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", common.ErrConfiguration, err)
	}
	return &m, nil
}

// checkManifest reports every namespace file and key the default locale is
// missing, sorted for stable output.
func checkManifest(m *Manifest, defaults map[string]map[string]string) error {
	if m == nil {
		return nil
	}

	var missing []string
	for ns, keys := range m.Namespaces {
		values, ok := defaults[ns]
		if !ok {
			missing = append(missing, "namespace "+ns)
			continue
		}
		for _, k := range keys {
			if _, ok := values[k]; !ok {
				missing = append(missing, ns+":"+k)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: default locale is missing %s", common.ErrConfiguration, strings.Join(missing, ", "))
}

// flatten turns a nested string tree into dotted keys. List items are
// addressed by index.
func flatten(prefix string, v any, out map[string]string) error {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if err := flatten(join(prefix, k), child, out); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range t {
			if err := flatten(join(prefix, strconv.Itoa(i)), child, out); err != nil {
				return err
			}
		}
	case string:
		out[prefix] = t
	case nil:
		return fmt.Errorf("key %q has no value", prefix)
	default:
		out[prefix] = fmt.Sprint(t)
	}
	return nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
