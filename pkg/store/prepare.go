package store

import (
	"fmt"

	"github.com/grovetools/storyview/pkg/index"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/util/sanitize"
)

// processCSFFile turns a loaded module into processed stories keyed by id.
func processCSFFile(file *models.CSFFile, project *models.ProjectAnnotations) (map[string]*models.Story, error) {
	meta := file.Meta
	if meta.Title == "" {
		return nil, fmt.Errorf("%s: default export is missing a title", file.ImportPath)
	}
	componentID := meta.ID
	if componentID == "" {
		componentID = sanitize.ForStoryID(meta.Title)
	}

	stories := make(map[string]*models.Story, len(file.Stories))
	for _, annotations := range file.Stories {
		id, name, err := storyIdentity(meta, annotations)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file.ImportPath, err)
		}
		stories[id] = prepareStory(id, componentID, name, file, annotations, project)
	}
	return stories, nil
}

// IndexEntries lists the index entries for a module's stories in export order.
func IndexEntries(file *models.CSFFile) ([]index.Entry, error) {
	entries := make([]index.Entry, 0, len(file.Stories))
	for _, annotations := range file.Stories {
		id, name, err := storyIdentity(file.Meta, annotations)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file.ImportPath, err)
		}
		var params models.Parameters
		if annotations.Parameters.Bool("docsOnly") {
			params = models.Parameters{"docsOnly": true}
		}
		entries = append(entries, index.Entry{
			ID:         id,
			Title:      file.Meta.Title,
			Name:       name,
			ImportPath: file.ImportPath,
			Parameters: params,
		})
	}
	return entries, nil
}

func storyIdentity(meta models.ComponentAnnotations, annotations models.StoryAnnotations) (string, string, error) {
	name := annotations.Name
	if name == "" {
		name = sanitize.StoryNameFromExport(annotations.ExportName)
	}
	base := meta.ID
	if base == "" {
		base = meta.Title
	}
	id, err := sanitize.ToID(base, sanitize.StoryNameFromExport(annotations.ExportName))
	return id, name, err
}

func prepareStory(
	id, componentID, name string,
	file *models.CSFFile,
	story models.StoryAnnotations,
	project *models.ProjectAnnotations,
) *models.Story {
	if project == nil {
		project = &models.ProjectAnnotations{}
	}
	meta := file.Meta

	parameters := combineParameters(project.Parameters, meta.Parameters, story.Parameters)
	parameters["__id"] = id
	parameters["fileName"] = file.ImportPath

	argTypes := models.ArgTypes{}
	for _, src := range []models.ArgTypes{project.ArgTypes, meta.ArgTypes, story.ArgTypes} {
		for k, v := range src {
			argTypes[k] = v
		}
	}

	initialArgs := apply(defaultsFromTypes(argTypes), project.Args)
	initialArgs = apply(initialArgs, meta.Args)
	initialArgs = apply(initialArgs, story.Args)
	inferArgTypes(argTypes, initialArgs)

	return &models.Story{
		ID:          id,
		Title:       meta.Title,
		Name:        name,
		ImportPath:  file.ImportPath,
		ComponentID: componentID,
		Component:   meta.Component,
		Parameters:  parameters,
		InitialArgs: models.Args(initialArgs),
		ArgTypes:    argTypes,
		Play:        story.Play,
	}
}

// combineParameters deep-merges parameter maps, later maps winning. Nested
// maps are merged key by key; any other value replaces the earlier one.
func combineParameters(layers ...models.Parameters) models.Parameters {
	out := models.Parameters{}
	for _, layer := range layers {
		mergeInto(out, layer)
	}
	return out
}

func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		srcMap, srcIsMap := asMap(v)
		dstMap, dstIsMap := asMap(dst[k])
		if srcIsMap && dstIsMap {
			merged := make(map[string]interface{}, len(dstMap))
			mergeInto(merged, dstMap)
			mergeInto(merged, srcMap)
			dst[k] = merged
			continue
		}
		if srcIsMap {
			cp := make(map[string]interface{}, len(srcMap))
			mergeInto(cp, srcMap)
			dst[k] = cp
			continue
		}
		dst[k] = v
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case models.Parameters:
		return m, true
	}
	return nil, false
}

// inferArgTypes fills in names and value types for args that lack them.
func inferArgTypes(argTypes models.ArgTypes, args map[string]interface{}) {
	for k, v := range args {
		at := argTypes[k]
		if at.Name == "" {
			at.Name = k
		}
		if at.Type == nil {
			at.Type = &models.SBType{Name: inferType(v)}
		}
		argTypes[k] = at
	}
	for k, at := range argTypes {
		if at.Name == "" {
			at.Name = k
			argTypes[k] = at
		}
	}
}

func inferType(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64, float32, float64, uint, uint32, uint64:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "other"
	}
}
