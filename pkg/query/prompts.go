package query

// LocalAnswerPrompt is the system prompt for local search answer
// generation. The placeholder receives the assembled graph context.
const LocalAnswerPrompt = `You are a helpful assistant answering questions about a set of documents.

Use ONLY the structured context below to answer. The context contains
entities, relationships, and source text extracted from the documents.
If the context does not contain the answer, say so instead of guessing.

Cite concrete entities and relationships from the context where they
support your answer.

-----Context-----
%s
`

// GlobalMapPrompt is the prompt for the map phase of global search. The
// first placeholder receives a batch of community reports, the second
// the user query.
const GlobalMapPrompt = `You are analyzing summaries of topic communities detected in a document collection.

Extract the key points from the community reports below that help answer
the user question. Rate each point from 0 to 100 by how important it is
for the answer. Only include points that are actually supported by the
reports; return an empty list if nothing is relevant.

-----Community Reports-----
%s

-----Question-----
%s
`

// GlobalReducePrompt is the prompt for the reduce phase of global
// search. The first placeholder receives the ranked key points, the
// second the user query.
const GlobalReducePrompt = `You are a helpful assistant answering a broad question about a document collection.

Combine the ranked analyst findings below into a single comprehensive
answer. More important findings (higher score) should carry more weight.
Do not invent information that is not in the findings; if they are
insufficient, say so.

-----Findings-----
%s

-----Question-----
%s
`
