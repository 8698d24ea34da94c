package churn

import "github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"

var classifyPrompt = model.Prompt{
	Name: "classify",
	Template: `Previous conversation:
{history}

Current query: {query}

Classify the query and choose ONE tool:
- prediction_tool: For predicting churn or explaining a prediction (keywords: predict, churn, explain, why).
- recommendation_tool: For recommendations or actions to retain customers (keywords: recommend, actions, suggestions).
- sql_tool: For database queries, aggregates, averages, counts, or lists (keywords: average, count, show all, list, how many).
- probability_filter_tool: For queries filtering customers by churn probability (keywords: churn probability, probability greater than, probability above).

Respond ONLY with the tool name: prediction_tool, recommendation_tool, sql_tool, probability_filter_tool.`,
}

var extractPrompt = model.Prompt{
	Name: "extract",
	Template: `Extract the following fields from the text and provide them in JSON format:
CreditScore, Geography, Gender, Age, Tenure, Balance, NumOfProducts, HasCrCard, IsActiveMember, EstimatedSalary.

Rules:
- All values must be in English and numeric where applicable.
- For boolean fields, use true/false.
- Detect the language of the input and extract accordingly, but output JSON in English keys.

Text: "{text}"
JSON:`,
}

var sqlPrompt = model.Prompt{
	Name: "sql",
	Template: `You are a SQL expert. Convert the following natural language query to a valid SQLite query for a table named 'customers' with columns: CustomerId, Surname, CreditScore, Geography, Gender, Age, Tenure, Balance, NumOfProducts, HasCrCard, IsActiveMember, EstimatedSalary, Exited.

Query: {query}

Rules:
- Return only the SQL query as plain text.
- Do not include explanations or markdown.
- Ensure the query is safe and valid for SQLite.
- If the query is ambiguous, make reasonable assumptions (e.g., 'high balance' means Balance > 100000, 'low activity' means IsActiveMember = 0).

Examples:
- "Show customers with high balance but low activity" -> SELECT CustomerId, Surname, Balance FROM customers WHERE Balance > 100000 AND IsActiveMember = 0
- "Average age of exited customers" -> SELECT AVG(Age) FROM customers WHERE Exited = 1`,
}

var explainPrompt = model.Prompt{
	Name: "explain",
	Template: `Generate a concise explanation for the churn prediction in {language}.
Prediction (0=no churn, 1=churn): {pred}
Churn Probability: {prob}
Key SHAP values: {shap}
Customer data: {data}

List only the top 3 factors affecting the prediction as bullet points.
Respond in {language} with no additional details.`,
}

var recommendPrompt = model.Prompt{
	Name: "recommend",
	Template: `Based on customer data: {data}
List 3 concise recommendations to reduce churn risk in {language}.
Use bullet points and keep each recommendation short.`,
}
