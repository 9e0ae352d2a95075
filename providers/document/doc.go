// Package document supplies the financial filing a workflow run analyzes.
//
// A [Source] yields the full text; [FileSource] reads plain text, Markdown,
// HTML (converted to Markdown) and PDF filings that ship with an extracted
// sibling .txt file. [KeywordIndex] splits the text into page-numbered
// chunks and implements [Retriever] for citation excerpts.
package document
