// Package preview serves link-preview responses to social and search crawlers.
//
// Requests for /pet/{id} from a recognised crawler are answered with a synthetic document carrying
// Open Graph and Twitter Card tags (or, depending on the configured strategy, the pet image itself or a
// redirect to it). Every other request passes through untouched. Lookup failures of any kind collapse to a
// 302 towards a static fallback image; this layer never answers a crawler with a 5xx.
package preview
