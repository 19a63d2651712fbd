// Package titles provides the string normalization used by every matching
// tier plus selection of the query title from a localized title map.
//
// Normalization is deliberately lossy: catalogs disagree on punctuation,
// casing, and leading articles, so tiers compare titles only after reducing
// them to a canonical form. All functions are pure and total over strings.
package titles
