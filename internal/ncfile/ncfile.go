// Package ncfile reads the header of NetCDF files (classic CDF and
// NetCDF-4/HDF5) without loading variable data.
package ncfile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

var cfVersionPattern = regexp.MustCompile(`CF-\d+(\.\d+)*`)

// Attribute is a named NetCDF attribute.
type Attribute struct {
	Name  string
	Type  string
	Value any
}

// String formats the attribute value the way ncdump shows it, roughly.
func (a Attribute) String() string {
	if s, ok := a.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(a.Value)
}

// Variable describes one variable of a file.
type Variable struct {
	Name       string
	Type       string
	Dimensions []string
	Length     int64
	Attributes []Attribute
}

// Attribute looks up a variable attribute by name.
func (v Variable) Attribute(name string) (Attribute, bool) {
	return findAttribute(v.Attributes, name)
}

// FileInfo is the header of a NetCDF file.
type FileInfo struct {
	Path       string
	Attributes []Attribute
	Variables  []Variable
}

// Inspect opens path and reads its global attributes and variable metadata.
func Inspect(path string) (*FileInfo, error) {
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer group.Close()

	info := &FileInfo{
		Path:       path,
		Attributes: attributes(group.Attributes()),
	}
	for _, name := range group.ListVariables() {
		vg, err := group.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("reading variable %s of %s: %w", name, path, err)
		}
		info.Variables = append(info.Variables, Variable{
			Name:       name,
			Type:       vg.Type(),
			Dimensions: vg.Dimensions(),
			Length:     vg.Len(),
			Attributes: attributes(vg.Attributes()),
		})
	}
	return info, nil
}

// Attribute looks up a global attribute by name.
func (f *FileInfo) Attribute(name string) (Attribute, bool) {
	return findAttribute(f.Attributes, name)
}

// Variable looks up a variable by name.
func (f *FileInfo) Variable(name string) (Variable, bool) {
	for _, v := range f.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Conventions returns the Conventions global attribute, or "" when absent.
func (f *FileInfo) Conventions() string {
	a, ok := f.Attribute("Conventions")
	if !ok {
		return ""
	}
	s, _ := a.Value.(string)
	return strings.TrimSpace(s)
}

// CFVersion returns the CF-x.y token of the Conventions attribute, or ""
// when the file does not claim a CF version.
func (f *FileInfo) CFVersion() string {
	return cfVersionPattern.FindString(f.Conventions())
}

func attributes(m api.AttributeMap) []Attribute {
	if m == nil {
		return nil
	}
	keys := m.Keys()
	out := make([]Attribute, 0, len(keys))
	for _, k := range keys {
		val, _ := m.Get(k)
		typ, _ := m.GetType(k)
		out = append(out, Attribute{Name: k, Type: typ, Value: val})
	}
	return out
}

func findAttribute(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}
