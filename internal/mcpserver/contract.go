package mcpserver

// PostFormatContract describes how quill stores a blog post, for LLM
// consumers creating or editing posts.
const PostFormatContract = `# Quill Post Format

Each post is one Markdown file at ` + "`posts/<slug>.md`" + ` in the content repository.
The tools build this file for you; the format matters when you read posts back or
reason about what an update will change.

## File layout

` + "```" + `markdown
---
title: "Hello World"
date: "2024-05-01T10:00:00.000Z"
author: "Admin"
excerpt: "One-line summary"
tags: ["go", "blogging"]
categories: ["engineering"]
image: "https://example.com/cover.png"
status: "published"
metaDescription: "Shown to search engines"
updatedAt: "2024-06-01T08:30:00.000Z"
---

Body in standard Markdown (GitHub flavoured: tables, task lists, strikethrough).
` + "```" + `

## Header rules

1. The header is a flat list of ` + "`key: value`" + ` lines between ` + "`---`" + ` fences. It is not
   full YAML: no nesting. A line break inside a string is written as ` + "`\\n`" + `
   and a backslash as ` + "`\\\\`" + `.
2. Strings are double-quoted. ` + "`true`/`false`" + ` are booleans. Lists are JSON arrays of
   strings; a bare comma-separated value is also read as a list.
3. Keys are written in this order: title, date, author, excerpt, tags, categories,
   image, status, then metaDescription and updatedAt when present.
4. One blank line separates the closing fence from the body.

## Defaults when reading

| Field | Missing value becomes |
|---|---|
| title | "Untitled" |
| author | the configured default author |
| date | the time of reading |
| status | "published" |
| metaDescription | the excerpt |
| updatedAt | the date |

## Slugs

The slug is derived from the title on creation: lower-cased, characters other than
letters, digits, underscores, spaces and hyphens dropped, runs of whitespace turned
into single hyphens, repeated hyphens collapsed and leading or trailing hyphens
trimmed. ` + "`Hello, World!`" + ` becomes ` + "`hello-world`" + `. Two titles with the same slug
collide: the second create fails.

## Updates

An update replaces every field. The original ` + "`date`" + ` is kept and ` + "`updatedAt`" + ` is set
to the time of the update. Use ` + "`diff_post`" + ` to preview the change first.
`
