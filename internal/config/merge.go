package config

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"

	"gopkg.in/yaml.v3"
)

// Merge reads the given configuration files (directories are walked
// recursively) and merges them into a single YAML document. Mappings are
// merged key by key; for scalar values the last file wins unless strict is
// set, in which case conflicting values are an error.
func Merge(configFiles []string, strict bool) ([]byte, error) {
	docs, err := readDocuments(configFiles)
	if err != nil {
		return nil, err
	}

	merged, err := mergeDocuments(docs, "", strict)
	if err != nil {
		return nil, err
	}

	bs, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged configuration: %v", err)
	}

	return bs, nil
}

func readDocuments(configFiles []string) ([]map[string]any, error) {
	var paths []string
	for _, f := range configFiles {
		err := filepath.Walk(f, func(path string, fi fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	docs := make([]map[string]any, 0, len(paths))
	for _, path := range paths {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %v: %v", path, err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(bs, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal configuration file %v: %v", path, err)
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func mergeDocuments(docs []map[string]any, path string, strict bool) (map[string]any, error) {
	result := make(map[string]any)
	for _, doc := range docs {
		for _, key := range slices.Sorted(maps.Keys(doc)) { // Sorted keys keep merge errors deterministic.
			value := doc[key]
			existing, ok := result[key]
			if !ok {
				result[key] = value
				continue
			}

			existingMap, ok1 := existing.(map[string]any)
			valueMap, ok2 := value.(map[string]any)
			if ok1 && ok2 {
				var err error
				result[key], err = mergeDocuments([]map[string]any{existingMap, valueMap}, path+"/"+key, strict)
				if err != nil {
					return nil, err
				}
				continue
			}

			if strict && !reflect.DeepEqual(existing, value) {
				return nil, fmt.Errorf("conflict for config path %s", path+"/"+key)
			}
			result[key] = value
		}
	}
	return result, nil
}
