package pipeline

// CompletionMarker is the phrase the orchestrator emits once the objective
// is fully achieved.
const CompletionMarker = "The task is complete:"

const orchestratorSystemPrompt = "You are an AI task orchestrator whose role is to break down high-level objectives into actionable sub-tasks. " +
	"I will provide you with an objective, and your job is to analyze it and develop a plan for how to best accomplish that objective.\n" +
	"Please carefully consider this objective and identify the key components, milestones, or phases that would be involved in achieving it. " +
	"Think about the specific steps that would need to be taken. Then, break the objective down into a series of clear, concrete sub-tasks. " +
	"Each sub-task should be a distinct action that moves us closer to accomplishing the overall objective. " +
	"The sub-tasks should be specific enough to be actionable and measurable. " +
	"Collectively, completing all the sub-tasks should be sufficient to fully achieve the stated objective.\n" +
	"After listing out the sub-tasks, please provide a brief justification inside <justification> tags explaining why you chose to break down the objective in this particular way. " +
	"Explain how this set of sub-tasks effectively covers the full scope of the objective.\n" +
	"Focus on just decomposing the objective into parts, not on actually completing the work to achieve the objective. " +
	"The sub-tasks you output should be high-level milestones, not a complete to-do list of every granular action required.\n" +
	"Please carefully analyze the objective and put serious thought into the optimal sub-task breakdown before responding. " +
	"Aim to be thorough, but keep your response reasonably concise."

// orchestratorUserPrompt takes the " and file content" fragment and the objective.
const orchestratorUserPrompt = "Based on the following objective%s, and the previous sub-task results (if any), " +
	"please break down the objective into the next sub-task, and create a concise and detailed prompt for a subagent so it can execute that task. " +
	"IMPORTANT!!! when dealing with code tasks make sure you check the code for errors and provide fixes and support as part of the next sub-task. " +
	"If you find any bugs or have suggestions for better code, please include them in the next sub-task prompt. " +
	"Please assess if the objective has been fully achieved. " +
	"If the previous sub-task results comprehensively address all aspects of the objective, include the phrase '" + CompletionMarker + "' at the beginning of your response. " +
	"If the objective is not yet fully achieved, break it down into the next sub-task and create a concise and detailed prompt for a subagent to execute that task.:" +
	"\n\nObjective: %s"

const searchQueryInstruction = "Please also generate a JSON object containing a single 'search_query' key, " +
	"which represents a question that, when asked online, would yield important information for solving the subtask. " +
	"The question should be specific and targeted to elicit the most relevant and helpful resources. " +
	"Format your JSON like this, with no additional text before or after:\n{\"search_query\": \"<question>\"}\n"

const (
	subAgentContinuationPrompt = "Continuing from the previous answer, please complete the response."
	subAgentHistoryHeader      = "Previous sub-agent tasks:\n"
)

const refinerSystemPrompt = "Your task is to take a set of subtask results and refine them into a high-quality final output that addresses an overall task description.\n" +
	"Please carefully review the task description to make sure you have a clear understanding of the ultimate goal that needs to be achieved.\n" +
	"Next, critically examine each of the provided subtask results. Evaluate the quality and relevance of each one - how well does it contribute to addressing the overall task? " +
	"Also analyze how well the subtask results fit together. Are they coherent and aligned with each other, or are there any contradictions or inconsistencies across the different results?\n" +
	"<reflection>Think through how you can synthesize the subtask results together into a comprehensive final output. Consider:\n" +
	"- What is the most logical way to structure and present the information from the subtasks?\n" +
	"- How can you ensure a natural flow and transition between the different pieces while avoiding redundancy?\n" +
	"- Is there any important information missing from the subtasks that needs to be added?\n" +
	"- Does the compiled output fully address all aspects of the overall task description?\n" +
	"</reflection>\n" +
	"Once you have a clear plan, generate the final refined output. Make sure it is well-organized, easy to follow, and covers the task description completely. " +
	"Aim to create a polished, coherent and standalone final work product.\n" +
	"Please provide your final output inside <result> tags."

const refinerConventions = "\n\nPlease review and refine the sub-task results into a cohesive final output. " +
	"Add any missing information or details as needed. Make sure the code files are completed. " +
	"When working on code projects, ONLY AND ONLY IF THE PROJECT IS CLEARLY A CODING ONE please provide the following:\n" +
	"1. Project Name: Create a concise and appropriate project name that fits the project based on what it's creating. " +
	"The project name should be no more than 20 characters long.\n" +
	"2. Folder Structure: Provide the folder structure as a valid JSON object, where each key represents a folder or file, and nested keys represent subfolders. " +
	"Use null values for files. Ensure the JSON is properly formatted without any syntax errors. " +
	"Please make sure all keys are enclosed in double quotes, and ensure objects are correctly encapsulated with braces, separating items with commas as necessary.\n" +
	"Wrap the JSON object in <folder_structure> tags.\n" +
	"3. Code Files: For each code file, include ONLY the file name in this format 'Filename: <filename>' " +
	"NEVER EVER USE THE FILE PATH OR ANY OTHER FORMATTING YOU ONLY USE THE FOLLOWING format 'Filename: <filename>' " +
	"followed by the code block enclosed in triple backticks, with the language identifier after the opening backticks, like this:\n\n" +
	"```python\n<code>\n```"

const refinerContinuation = "\n\nContinue from the previous output."
