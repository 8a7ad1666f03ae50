// Package book implements a price-time-priority limit order book for a
// single instrument. Price levels live in a dense array indexed by
// price/increment; the non-empty levels of each side are threaded
// through the array as a doubly linked list, so best-price access is
// O(1) and depth walks touch only occupied levels.
package book
