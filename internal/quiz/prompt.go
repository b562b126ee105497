package quiz

import (
	"fmt"
	"unicode/utf8"
)

// maxPromptChars bounds the source text embedded in the prompt so long
// documents do not blow the context window.
const maxPromptChars = 6000

const systemPrompt = `Eres un experto en educación que crea quizzes educativos de alta calidad. Debes generar preguntas que ayuden a evaluar la comprensión profunda del material. Siempre responde con JSON válido.`

func buildUserPrompt(content string, opts GenerateOptions) string {
	truncated := content
	ellipsis := ""
	if len(content) > maxPromptChars {
		cut := maxPromptChars
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		truncated = content[:cut]
		ellipsis = " ..."
	}

	return fmt.Sprintf(`Analiza el siguiente texto y genera un quiz educativo de alta calidad en %s.

TEXTO:
%s%s

INSTRUCCIONES:
1. Genera exactamente %d preguntas de nivel %s
2. Mezcla preguntas de múltiple opción (4 opciones) y verdadero/falso
3. Las preguntas deben evaluar conceptos clave, no detalles triviales
4. Proporciona explicaciones claras para cada respuesta correcta
5. Para múltiple opción, las opciones incorrectas deben ser plausibles pero claramente incorrectas
6. Genera un título descriptivo para el quiz basado en el contenido

FORMATO DE RESPUESTA (JSON):
{
  "title": "Título del Quiz",
  "difficulty": "%s",
  "questions": [
    {
      "question_text": "Pregunta aquí",
      "question_type": "multiple_choice" | "true_false",
      "correct_answer": "Respuesta correcta",
      "options": ["Opción 1", "Opción 2", "Opción 3", "Opción 4"],
      "explanation": "Explicación de por qué es correcta"
    }
  ]
}

IMPORTANTE: Responde SOLO con el JSON, sin texto adicional.`,
		opts.Language, truncated, ellipsis, opts.NumQuestions, opts.Difficulty, opts.Difficulty)
}
