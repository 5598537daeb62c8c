// Package files expands command-line inputs into census files.
//
// Arguments may be files, directories or glob patterns, and each argument
// is split on whitespace so a single quoted list of paths still works.
// Directories expand to the census files they contain (DefaultCensusExt),
// sorted by name.
//
// Example usage:
//
//	discovery := files.NewDiscovery("")
//	paths, err := discovery.ExpandInputs([]string{"runs/", "extra/*.txt"})
package files
