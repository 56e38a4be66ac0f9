package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled while loading definitions.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the definitions loaded from a file or directory.
type LoadResult struct {
	Definitions []*Definition
	CUEValue    cue.Value // The raw CUE value for additional processing
	FileCount   int       // Number of CUE files found
}

// Definition returns the named definition, or the only one when name is
// empty.
func (r *LoadResult) Definition(name string) (*Definition, error) {
	if name == "" {
		if len(r.Definitions) == 1 {
			return r.Definitions[0], nil
		}
		return nil, &LoadError{Code: ErrCodeAmbiguous, Message: fmt.Sprintf("%d providers defined, name one", len(r.Definitions))}
	}
	for _, d := range r.Definitions {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, &LoadError{Code: ErrCodeUnknownProvider, Message: fmt.Sprintf("no provider named %q", name)}
}

// LoadError represents an error that occurred while loading definitions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load loads and compiles the provider definitions in path, a .cue file
// or a directory of .cue files that are unified into one value.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func Load(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definition path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}}
	}

	dir, cueFiles := filepath.Dir(path), []string{path}
	if info.IsDir() {
		dir = path
		if cueFiles, err = FindCUEFiles(path); err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
	}

	// Files are named explicitly: in package mode CUE skips files that
	// have no package clause, and definitions usually have none.
	args := make([]string, len(cueFiles))
	for i, f := range cueFiles {
		args[i] = filepath.Base(f)
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(cueFiles)}
	errs := compileAll(value, mode, result)
	if len(result.Definitions) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no providers found in definitions"})
	}
	return result, errs
}

// LoadString compiles definitions from CUE source, for tests and
// embedded definitions.
func LoadString(filename, src string, mode LoadMode) (*LoadResult, []error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, []error{convertCompileError(formatCUEError(err), filename)}
	}
	result := &LoadResult{CUEValue: value, FileCount: 1}
	errs := compileAll(value, mode, result)
	if len(result.Definitions) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no providers found in definitions"})
	}
	return result, errs
}

func compileAll(value cue.Value, mode LoadMode, result *LoadResult) []error {
	var errs []error
	providers := value.LookupPath(cue.ParsePath("provider"))
	if !providers.Exists() {
		return nil
	}
	iter, err := providers.Fields()
	if err != nil {
		return []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating providers: %v", err)}}
	}
	for iter.Next() {
		def, err := CompileDefinition(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "provider."+iter.Selector().String()))
			if mode == LoadModeFailFast {
				return errs
			}
			continue
		}
		result.Definitions = append(result.Definitions, def)
	}
	sort.Slice(result.Definitions, func(i, j int) bool { return result.Definitions[i].Name < result.Definitions[j].Name })
	return errs
}

// FindCUEFiles returns the .cue files directly inside dir, sorted by
// name. Subdirectories are not searched; CUE loads named files from one
// directory only.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	// Definition errors
	ErrCodeTable           = "E101" // Missing table
	ErrCodeFields          = "E102" // Missing or invalid fields
	ErrCodeFieldType       = "E103" // Unknown field type
	ErrCodeOptions         = "E104" // Invalid engine options
	ErrCodeTextSearch      = "E105" // Invalid word or sentence search
	ErrCodeKeyword         = "E106" // Invalid keyword condition
	ErrCodeSort            = "E107" // Invalid sort chain
	ErrCodeFullText        = "E108" // Invalid full-text settings
	ErrCodeAmbiguous       = "E110" // Several providers, none named
	ErrCodeUnknownProvider = "E111" // Named provider not defined
)

// MapFieldToErrorCode maps a compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "table":
		return ErrCodeTable
	case "fields", "name", "column":
		return ErrCodeFields
	case "type":
		return ErrCodeFieldType
	case "options", "pagination", "word_combiner", "text_keyword_combiner", "culture", "translations":
		return ErrCodeOptions
	case "word_search", "sentence_search":
		return ErrCodeTextSearch
	case "keywords", "localized_keywords", "all", "any", "path", "kind", "value":
		return ErrCodeKeyword
	case "default_sort", "unique_sort":
		return ErrCodeSort
	case "full_text.columns", "full_text.mode":
		return ErrCodeFullText
	default:
		return ErrCodeGeneric
	}
}
