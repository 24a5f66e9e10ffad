// Package keywords extracts the object nouns a prompt asks for.
//
// Text is part-of-speech tagged, tokens tagged NN, NNS, NNP or NNPS are kept,
// lowercased, and English stop words are dropped. An optional Lua script can
// post-process the list by defining
//
//	function filter(words) return words end
//
// which receives and returns an array of strings.
package keywords
