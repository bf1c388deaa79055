package prompt

import (
	"strings"
)

// Insufficient is the phrase the answer template asks the model to use when
// the context does not contain the answer.
const Insufficient = "Cannot be determined from the given context."

const answerInstructions = `**Task:** Answer questions based on a given context.

**Additional Details:**
- The context will be provided as a string.
- Questions will be in natural language and require reasoning before providing an answer.
- Answers should be formatted using markdown with appropriate headings, bullet points, tables, etc., as required by the question.

# Steps

1. **Understand the Context:** Read and comprehend the given context to extract relevant information.
2. **Analyze the Question:** Break down the question into smaller parts if necessary. Identify what specific information is being asked for.
3. **Reason and Infer:** Use logical reasoning and inference based on the context to derive the answer.
4. **Format the Answer:** Structure the answer using markdown formatting, including headings, bullet points, tables, etc., as appropriate.

# Output Format

The output should be in markdown format for the question asked. The answer should be structured appropriately using bullet points, tables, or other markdown elements as necessary.

# Notes
- Always ensure that the answer is based on the given context. If the question cannot be answered from the provided context, clearly state "` + Insufficient + `"
- Use tables sparingly and only when necessary to present complex data in a structured format.`

const reformatInstructions = `Reformat the given text as markdown.

The goal is to convert the provided text into valid markdown format. Preserve the original content and structure as much as possible while applying appropriate markdown syntax for headings, lists, emphasis, links, and other common elements.

# Output Format

The output should be a single string containing the reformatted text in markdown format.

` + "```markdown\nThe reformatted text goes here.\n```" + `

# Text to Reformat`

// UserGuide explains the context selector and the notes workflow.
const UserGuide = `1. Upload a PDF. Tick "normalize" to have every page's text rewritten as markdown (slower).
2. Page through the document; each page shows its image and extracted text.
3. Pick a context for your question:
   - leave it empty to use the whole document,
   - type @ followed by pages and ranges, e.g. @1,3-5, to use those pages in the order given,
   - or paste any text to use it as-is.
4. Ask a question. The answer can be edited and saved as a note.
5. Save highlights from the current page as notes, delete notes you no longer need, and export them as a text file.`

// BuildAnswerPrompt embeds the context and question into the answer template.
func BuildAnswerPrompt(context, question string) string {
	var sb strings.Builder
	sb.WriteString(answerInstructions)
	sb.WriteString("\n\n")
	sb.WriteString(context)
	sb.WriteString("\n\n---\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

// BuildReformatPrompt embeds raw page text into the markdown reformat template.
func BuildReformatPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString(reformatInstructions)
	sb.WriteString("\n")
	sb.WriteString(text)
	sb.WriteString("\n")
	return sb.String()
}
