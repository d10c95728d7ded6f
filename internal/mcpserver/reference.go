package mcpserver

// FilterReference documents the filter syntax accepted by the search tools'
// "filters" argument. It is served as the lynx://filter-reference resource.
const FilterReference = `# Lynx Filter Reference

The search_content and search_events tools take an optional "filters"
argument written as a URL query string, for example:

    type=article&categories=change,!promotion&sort=-created&per_page=10

## Shared parameters

| parameter | meaning |
|---|---|
| q | full-text query |
| fields | comma-separated projection, e.g. id,title |
| sort | field name, "-" prefix for descending; "relevance" ranks by q |
| page, per_page | page number (from 1) and page size |
| facets | comma-separated facet names, or "all" |
| created_after, created_before, updated_after, updated_before | ISO dates |
| recipe_ids, tag_ids | id lists |
| categories, levels | impact tag categories and levels |
| sous_chefs, tasks | recipe template and task names |

Lists are comma-separated. Prefix a value with "!" or "-" to exclude it:
"tag_ids=1,2,!3" keeps items tagged 1 or 2 and drops items tagged 3.

## Content parameters

| parameter | meaning |
|---|---|
| search | text vector: all, title, body, description, meta, authors |
| type | article, slideshow, video, podcast, interactive |
| provenance | manual or recipe |
| domain, url, url_regex | source matching |
| author_ids | id list |
| incl_body | include bodies in results |

## Event parameters

| parameter | meaning |
|---|---|
| status | pending (default), approved, deleted, or all |
| thing_ids | id list |
`
