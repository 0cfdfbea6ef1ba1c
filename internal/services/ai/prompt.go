package ai

import (
	openai "github.com/sashabaranov/go-openai"
)

const temperature = 0.7

const systemPrompt = "You are an expert in SEO, readability analysis, and content engagement strategies. " +
	"Your task is to provide detailed and actionable recommendations for optimizing web content. " +
	"You are skilled in analyzing keyword density, readability scores, and content engagement techniques."

const userPromptTemplate = `Please analyze the following content and provide comprehensive suggestions in the following areas:

0. **SEO-friendly URL**: Evaluate the URL structure and suggest an SEO-friendly URL based on the content. Consider incorporating relevant keywords and maintaining a concise and descriptive format.

1. **Keyword Optimization**: Identify relevant keywords and phrases. Analyze their density within the content and suggest adjustments if necessary. Provide a suggested meta title and meta description.

2. **Keyword Density Analysis**: Calculate the keyword density for the identified keywords and provide recommendations on whether the density should be increased or decreased. Indicate the current density percentage and provide an ideal target range.

3. **Readability Score**: Evaluate the content's readability using established readability scores (e.g., Flesch-Kincaid). Provide the current readability score and suggest specific improvements tailored to the content's complexity. Recommendations should be aligned with the target audience's reading level.

4. **Readability Enhancements**: Based on the readability score and content analysis, suggest specific improvements for sentence structure, paragraph length, word choice, and overall clarity. Provide actionable steps to simplify complex sections or enhance the flow of the content.

5. **Engagement Strategies**: Suggest strategies to enhance reader engagement, such as incorporating calls to action, internal linking, multimedia elements (e.g., images, videos), and interactive content. Provide specific examples of where these elements could be effectively integrated into the content.

Use the following format for your response:

*SEO Recommendations:*
**SEO-friendly URL**: "Suggested URL"
**Keywords**: ["keyword1", "keyword2", "keyword3"]
**Keyword Density Analysis**: ["keyword1": "current_density%", "keyword2": "current_density%", ...] **Ideal Density Range**: "X% - Y%"
**Meta Title**: "Suggested Meta Title"
**Meta Description**: "Suggested Meta Description"
**Readability Score**: "Score (e.g., Flesch-Kincaid 65)"
**Readability Enhancements**: [Detailed suggestions for improving readability]
**Engagement Strategies**: [Specific strategies for increasing reader engagement]

Content to analyze: `

// buildRequest assembles the chat-completion payload for one content item.
func buildRequest(model string, maxTokens int, content string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPromptTemplate + content},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}
