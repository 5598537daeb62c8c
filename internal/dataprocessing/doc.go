// Package dataprocessing turns census records into tabular rows.
//
// # Architecture
//
// The package is organized into three components:
//
// 1. Parser: reads tab-separated census output into a domain.Dataset
// 2. FilterEngine: prunes peptides and proteins with a domain.Filter
// 3. Aggregation: reduces the filtered dataset per protein, per peptide
// sequence or per peptide (flat)
//
// # Usage
//
//	ds, err := dataprocessing.ParseFile("census-out.txt", dataprocessing.DefaultParserOptions())
//	if err != nil {
//	    return err
//	}
//
//	opts := dataprocessing.DefaultOptions()
//	opts.Mode = dataprocessing.ModePeptide
//	result, err := dataprocessing.NewPipeline(opts).Process(ds, filter)
//
// # Data Flow
//
//	census file → Parser → Dataset → FilterEngine → Dataset → Aggregate → Table
//
// # Counts and averaging
//
// Protein spectral and sequence counts are taken from the census file unless
// FilterOptions.CountSource is CountsFiltered. Proteins left without peptides
// are dropped unless FilterOptions.KeepEmptyProteins is set; averaging such a
// protein yields 0 in every channel.
//
// Averages divide by the number of contributing peptide entries. The default
// DivisionTruncate uses integer division; DivisionFloat keeps two decimals.
package dataprocessing
