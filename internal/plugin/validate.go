package plugin

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ModuleReport is the static validation result for one candidate file.
type ModuleReport struct {
	Path        string
	File        string
	Registrable bool
	Err         string
}

// ValidatePackage statically inspects every candidate module of a
// config package without executing any plugin code. Candidates are
// parsed concurrently; report order stays lexicographic on module path.
func ValidatePackage(dir string) ([]ModuleReport, error) {
	pkgDir, err := ResolvePackage(dir)
	if err != nil {
		return nil, err
	}
	pkgName := filepath.Base(pkgDir)

	var reports []ModuleReport
	for _, sub := range detectorDirs {
		root := filepath.Join(pkgDir, sub)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // missing subdirectory is fine
			}
			if d.IsDir() {
				if d.Name() == "tests" {
					return filepath.SkipDir
				}
				return nil
			}
			name := d.Name()
			if !strings.HasSuffix(name, ".star") || strings.HasPrefix(name, "_") {
				return nil
			}
			rel, err := filepath.Rel(pkgDir, path)
			if err != nil {
				return err
			}
			reports = append(reports, ModuleReport{Path: dottedPath(pkgName, rel), File: path})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	var g errgroup.Group
	for i := range reports {
		g.Go(func() error {
			ok, err := definesRegister(reports[i].File)
			if err != nil {
				reports[i].Err = err.Error()
				return nil
			}
			reports[i].Registrable = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })
	return reports, nil
}
