package ollama

import "fmt"

const licenseSchema = `{
  "nombre_profesor": "string",
  "rut_profesor": "string",
  "emitido_por": "string",
  "fecha_inicio": "YYYY-MM-DD",
  "fecha_fin": "YYYY-MM-DD",
  "dias_reposo": int,
  "diagnostico_codigo": "string | null"
}`

const licenseInstructions = `You are a school administrative assistant processing Chilean medical leave certificates.
Extract ONLY the following fields as a strict JSON object with this schema:
` + licenseSchema + `
If the document is not a readable medical leave certificate, return the fields as null but extract as much as possible.
Privacy first: if diagnostico_codigo is not clear, leave it null.
No markdown, no extra keys.`

func buildImagePrompt(mimeType string) string {
	return fmt.Sprintf("%s\n\nThe attached image (%s) is the certificate. Extract data from this medical license.", licenseInstructions, mimeType)
}

func buildTextPrompt(text string) string {
	const maxSnippet = 8000
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	return licenseInstructions + "\n\nCertificate text:\n" + snippet
}
