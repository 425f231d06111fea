package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVisibleTextStripsScriptsAndStyles(t *testing.T) {
	t.Parallel()

	markup := `<html><head>
<style>body { color: red }</style>
<script>console.log("hidden")</script>
</head><body>
<h1>Acme Anvil</h1>
<noscript>enable js</noscript>
<p>  $49.99   today </p>
<template><span>ghost</span></template>
</body></html>`

	text := VisibleText(markup)
	require.Contains(t, text, "Acme Anvil")
	require.Contains(t, text, "$49.99 today")
	require.NotContains(t, text, "console.log")
	require.NotContains(t, text, "color: red")
	require.NotContains(t, text, "enable js")
	require.NotContains(t, text, "ghost")
}

func TestVisibleTextLineStructure(t *testing.T) {
	t.Parallel()

	markup := `<html><body><h1>Title</h1><p>First</p><p>Second</p></body></html>`
	text := VisibleText(markup)
	require.Contains(t, text, "Title")
	require.Contains(t, text, "First")
	require.Contains(t, text, "Second")
}

func TestVisibleTextEmptyMarkup(t *testing.T) {
	t.Parallel()

	require.Empty(t, VisibleText(""))
}
