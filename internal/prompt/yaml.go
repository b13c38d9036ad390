package prompt

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template 는 YAML 파일 하나에 정의된 프롬프트다.
type Template struct {
	Name   string `yaml:"-"`
	System string `yaml:"system"`
	User   string `yaml:"user"`
	// Requires 는 user 템플릿이 반드시 참조해야 하는 키 목록이다.
	Requires []string `yaml:"requires"`
}

// Render 는 user 템플릿을 값으로 치환한다.
func (t Template) Render(values map[string]string) (string, error) {
	out, err := FormatTemplate(t.User, values)
	if err != nil {
		return "", fmt.Errorf("render prompt %s: %w", t.Name, err)
	}
	return out, nil
}

// LoadTemplate 는 프롬프트 YAML 파일을 로드하고 검증한다.
func LoadTemplate(fsys fs.FS, filePath string) (Template, error) {
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return Template{}, fmt.Errorf("read prompt file: %w", err)
	}

	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return Template{}, fmt.Errorf("parse prompt yaml: %w", err)
	}
	tmpl.Name = strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))

	if strings.TrimSpace(tmpl.User) == "" {
		return Template{}, fmt.Errorf("%s: user prompt is empty", filePath)
	}
	if strings.TrimSpace(tmpl.System) != "" {
		if err := ValidateStatic(filePath, tmpl.System); err != nil {
			return Template{}, err
		}
	}

	used, err := Placeholders(tmpl.User)
	if err != nil {
		return Template{}, fmt.Errorf("%s: %w", filePath, err)
	}
	for _, key := range tmpl.Requires {
		if !slices.Contains(used, key) {
			return Template{}, fmt.Errorf("%s: user prompt does not reference %q", filePath, key)
		}
	}
	return tmpl, nil
}

// LoadDir 는 디렉터리의 프롬프트 YAML 을 이름별로 로드한다.
func LoadDir(fsys fs.FS, dir string) (map[string]Template, error) {
	var paths []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matched, err := fs.Glob(fsys, path.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob prompt dir: %w", err)
		}
		paths = append(paths, matched...)
	}

	templates := make(map[string]Template, len(paths))
	for _, filePath := range paths {
		tmpl, err := LoadTemplate(fsys, filePath)
		if err != nil {
			return nil, err
		}
		templates[tmpl.Name] = tmpl
	}
	return templates, nil
}

// Lookup 는 이름으로 프롬프트를 찾는다.
func Lookup(templates map[string]Template, name string) (Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("prompt not found: %s", name)
	}
	return tmpl, nil
}
