// Package tools implements the builtin toolset the model can invoke:
// read_file, write_file, edit_file, list_files, and search. Each tool is a
// small handler over a path-contained workspace; input schemas are derived
// from Go structs with GenerateSchema.
package tools
